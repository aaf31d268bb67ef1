package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/store"
)

// DefaultTerrainTimeout — таймаут одной команды terrain.
const DefaultTerrainTimeout = 15 * time.Second

// terrainFlags — флаги, общие для всех команд terrain.
type terrainFlags struct {
	token   string
	timeout time.Duration
}

func (f *terrainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "Terrain access token (default: TERRAIN_TOKEN)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", DefaultTerrainTimeout, "Request timeout")
}

// client создаёт клиент Terrain и контекст с таймаутом команды.
func (f *terrainFlags) client(cmd *cobra.Command, env Env) (*store.TerrainClient, context.Context, context.CancelFunc, error) {
	cfg, err := env.Config()
	if err != nil {
		return nil, nil, nil, err
	}

	token := f.token
	if token == "" {
		token = cfg.Store.TerrainToken
	}

	c := store.NewTerrainClient(store.TerrainConfig{
		BaseURL:  cfg.Store.TerrainURL,
		TokenURL: cfg.Store.TerrainTokenURL,
		ClientID: cfg.Store.TerrainClientID,
		Token:    token,
		Logger:   env.Logger(),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	return c, ctx, cancel, nil
}

// NewTerrainCmd создаёт группу команд для работы с хранилищем Terrain.
func NewTerrainCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terrain",
		Short: "Work with the Terrain data store",
	}

	cmd.AddCommand(
		newTerrainTokenCmd(env),
		newTerrainUserCmd(env),
		newTerrainListCmd(env),
		newTerrainStatCmd(env),
		newTerrainExistsCmd(env),
		newTerrainCreateCmd(env),
		newTerrainDownloadCmd(env),
		newTerrainUploadCmd(env),
		newTerrainShareCmd(env),
		newTerrainUnshareCmd(env),
		newTerrainTagCmd(env),
		newTerrainTagsCmd(env),
	)

	return cmd
}

func newTerrainTokenCmd(env Env) *cobra.Command {
	var username, password string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			token, err := c.Authenticate(ctx, username, password)
			if err != nil {
				return err
			}
			env.Output().Value(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "CyVerse username")
	cmd.Flags().StringVar(&password, "password", "", "CyVerse password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	f.register(cmd)

	return cmd
}

func newTerrainUserCmd(env Env) *cobra.Command {
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "user USERNAME",
		Short: "Show user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			info, err := c.UserInfo(ctx, args[0])
			if err != nil {
				return err
			}
			env.Output().JSON(info)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func entryRow(e store.Entry) []string {
	modified := ""
	if !e.Modified.IsZero() {
		modified = e.Modified.Format(time.RFC3339)
	}
	return []string{e.Path, string(e.Kind), strconv.FormatInt(e.Size, 10), modified}
}

var entryHeaders = []string{"PATH", "TYPE", "SIZE", "MODIFIED"}

func newTerrainListCmd(env Env) *cobra.Command {
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "list REMOTE_PATH",
		Short: "List a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			var entries []store.Entry
			for e, err := range c.List(ctx, args[0]) {
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}

			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = entryRow(e)
			}
			env.Output().Print(entryHeaders, rows, entries)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func newTerrainStatCmd(env Env) *cobra.Command {
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "stat REMOTE_PATH",
		Short: "Show file or directory information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			e, err := c.Stat(ctx, args[0])
			if err != nil {
				return err
			}
			env.Output().Print(entryHeaders, [][]string{entryRow(e)}, e)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func newTerrainExistsCmd(env Env) *cobra.Command {
	var kind string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "exists REMOTE_PATH",
		Short: "Check whether a path exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := store.EntryKind(kind)
			switch k {
			case "", store.KindFile, store.KindDirectory:
			default:
				return fmt.Errorf("--type must be %q or %q, got %q", store.KindFile, store.KindDirectory, kind)
			}

			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			ok, err := c.Exists(ctx, args[0], k)
			if err != nil {
				return err
			}
			env.Output().Value(ok)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "Expected type: file or dir")
	f.register(cmd)

	return cmd
}

func newTerrainCreateCmd(env Env) *cobra.Command {
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "create REMOTE_PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			if err := c.Create(ctx, args[0]); err != nil {
				return err
			}
			env.Output().Success(fmt.Sprintf("Created %s", args[0]))
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func newTerrainDownloadCmd(env Env) *cobra.Command {
	var localPath string
	var patterns, force []string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "download REMOTE_PATH",
		Short: "Download a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			files, err := c.Download(ctx, store.DownloadRequest{
				RemotePath: args[0],
				LocalPath:  localPath,
				Filter:     domain.Filter{IncludePatterns: patterns},
				Force:      force,
			})
			if err != nil {
				return err
			}

			out := env.Output()
			if out.JSONMode() {
				out.JSON(files)
			}
			out.Success(fmt.Sprintf("Downloaded %s to %s", args[0], localPath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&localPath, "local-path", "p", ".", "Local directory")
	cmd.Flags().StringArrayVar(&patterns, "include-pattern", nil, "Glob of file names to include (repeatable)")
	cmd.Flags().StringArrayVarP(&force, "force", "f", nil, "Overwrite local files matching this glob (repeatable)")
	f.register(cmd)

	return cmd
}

func newTerrainUploadCmd(env Env) *cobra.Command {
	var localPath string
	var filter domain.Filter
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "upload REMOTE_PATH",
		Short: "Upload a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			files, err := c.Upload(ctx, store.UploadRequest{
				LocalPath:  localPath,
				RemotePath: args[0],
				Filter:     filter,
			})
			if err != nil {
				return err
			}

			out := env.Output()
			if out.JSONMode() {
				out.JSON(files)
			}
			out.Success(fmt.Sprintf("Uploaded %s to %s", localPath, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&localPath, "local-path", "p", ".", "Local file or directory")
	cmd.Flags().StringArrayVar(&filter.IncludePatterns, "include-pattern", nil, "Glob of file names to include (repeatable)")
	cmd.Flags().StringArrayVar(&filter.IncludeNames, "include-name", nil, "Exact file name to include (repeatable)")
	cmd.Flags().StringArrayVar(&filter.ExcludePatterns, "exclude-pattern", nil, "Glob of file names to exclude (repeatable)")
	cmd.Flags().StringArrayVar(&filter.ExcludeNames, "exclude-name", nil, "Exact file name to exclude (repeatable)")
	f.register(cmd)

	return cmd
}

func newTerrainShareCmd(env Env) *cobra.Command {
	var username, permission string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "share REMOTE_PATH",
		Short: "Share a path with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			if err := c.Share(ctx, args[0], username, permission); err != nil {
				return err
			}
			env.Output().Success(fmt.Sprintf("Shared %s with %s", args[0], username))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "User to share with")
	cmd.Flags().StringVarP(&permission, "permission", "p", "", "Permission: "+strings.Join(store.Permissions, ", "))
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("permission")
	f.register(cmd)

	return cmd
}

func newTerrainUnshareCmd(env Env) *cobra.Command {
	var usernames []string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "unshare REMOTE_PATH",
		Short: "Revoke access to a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			if err := c.Unshare(ctx, args[0], usernames); err != nil {
				return err
			}
			env.Output().Success(fmt.Sprintf("Unshared %s with %s", args[0], strings.Join(usernames, ", ")))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&usernames, "username", "u", nil, "User to revoke (repeatable)")
	cmd.MarkFlagRequired("username")
	f.register(cmd)

	return cmd
}

// ParseAttributes разбирает пары key=value.
func ParseAttributes(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("attribute %q must be key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newTerrainTagCmd(env Env) *cobra.Command {
	var attrs, irodsAttrs []string
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "tag ID",
		Short: "Set metadata on a data object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			regular, err := ParseAttributes(attrs)
			if err != nil {
				return err
			}
			irods, err := ParseAttributes(irodsAttrs)
			if err != nil {
				return err
			}

			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			if err := c.Tag(ctx, args[0], regular, irods); err != nil {
				return err
			}
			env.Output().Success(fmt.Sprintf("Tagged data object with ID %s:\nRegular:\n%s\niRODS:\n%s",
				args[0], strings.Join(attrs, "\n"), strings.Join(irodsAttrs, "\n")))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&attrs, "attribute", "a", nil, "Metadata attribute key=value (repeatable)")
	cmd.Flags().StringArrayVar(&irodsAttrs, "irods-attribute", nil, "iRODS attribute key=value (repeatable)")
	f.register(cmd)

	return cmd
}

func newTerrainTagsCmd(env Env) *cobra.Command {
	var irods bool
	var f terrainFlags

	cmd := &cobra.Command{
		Use:   "tags ID",
		Short: "Show metadata of a data object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := f.client(cmd, env)
			if err != nil {
				return err
			}
			defer cancel()

			tags, err := c.Tags(ctx, args[0], irods)
			if err != nil {
				return err
			}
			env.Output().KeyValues(tags)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&irods, "irods", "i", false, "Show iRODS attributes")
	f.register(cmd)

	return cmd
}
