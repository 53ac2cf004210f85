// Package config загружает конфигурацию станции.
//
// Порядок: значения по умолчанию, затем YAML файл ($ACQUIRE_CONFIG или
// ./acquire.yaml, если есть), затем переменные окружения:
//
//	API_PORT           порт HTTP API
//	DB_URL             Postgres DSN (хранилище документов)
//	SQLITE_PATH        файл SQLite (если DB_URL не задан)
//	RABBITMQ_URL       AMQP URL (включает RabbitMQ)
//	WEBHOOK_URL        URL для POST документов (включает webhook sink)
//	PLAN_LIBRARY       каталог YAML планов
//	METADATA_TEMPLATE  файл шаблона формы метаданных
//	TRACING_ENABLED    true/false
package config
