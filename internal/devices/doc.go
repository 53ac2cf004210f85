// Package devices описывает интерфейсы оборудования, с которым работает
// движок планов, и симулированные устройства для стенда без железа.
//
// Устройство объявляет возможности через интерфейсы:
//   - Movable     — позиционируемое (мотор)
//   - Triggerable — запускаемое (детектор)
//   - Readable    — читаемое (возвращает Reading и описание data_keys)
//   - AssetWriter — пишущее во внешние файлы (resource/datum документы)
package devices
