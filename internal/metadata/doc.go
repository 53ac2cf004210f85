// Package metadata реализует шаг сбора метаданных перед постановкой
// плана в очередь.
//
// # Обзор
//
// Перед тем как submission попадёт в очередь, оператор заполняет
// немодальную форму (sample_name и произвольные поля). Gate:
//   - открывает Form через events.Invoker (в потоке UI)
//   - проверяет, что ключи не пересекаются с зарезервированными
//   - сливает kwargs с собранными значениями и вызывает Queue.Put
//   - запоминает значения в Templates для следующей формы
//
// Отмена формы молча отбрасывает кандидата. Несколько форм могут быть
// открыты одновременно; каждая ставит в очередь свою submission.
//
// # Шаблоны
//
// Templates хранится в YAML:
//
//	version: acquire.metadata.v1
//	fields:
//	  - name: sample_name
//	    title: Sample Name
//	    value: LaB6
package metadata
