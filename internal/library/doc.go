// Package library реализует библиотеку планов.
//
// # Обзор
//
// Library хранит планы по имени: встроенные (count, scan, list_scan) и
// загруженные из YAML файлов PlanSpec. Каталог с файлами можно отслеживать
// (Watch): изменённые файлы перечитываются, удалённые убирают план.
//
// Пример файла:
//
//	name: energy_scan
//	description: Scan mono energy
//	parameters:
//	  - {name: points, type: list, required: true}
//	steps:
//	  - type: open_run
//	  - type: loop
//	    each: '{{ .Params.points }}'
//	    steps:
//	      - {type: move, device: mono, args: {position: '{{ .Item }}'}}
//	      - {type: read, args: {devices: [det1]}}
//	  - type: close_run
package library
