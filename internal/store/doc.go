// Package store — клиенты удалённого хранилища данных.
//
// Включает:
//   - store.go   — интерфейсы Browser, Transferer, Store
//   - terrain.go — REST-клиент Terrain (CyVerse Data Store)
//   - s3.go      — S3-совместимый backend на MinIO
//   - local.go   — общая логика загрузки и выгрузки деревьев файлов
//   - retry.go   — повторы идемпотентных запросов чтения
//
// Фильтрация файлов (domain.Filter) идёт по базовому имени, исключение
// важнее включения. Загрузка не перезаписывает существующие локальные файлы,
// если их имя не подходит под force-шаблоны.
package store
