// Package console реализует интерактивную станцию в терминале.
//
// # Обзор
//
// Console владеет терминалом и выполняет всё взаимодействие с оператором
// в одной горутине (events.Loop): команды, диалог параметров, форму
// метаданных и ленту уведомлений координатора.
//
// # Компоненты
//
//   - Console — цикл команд (plans, submit, pause, resume, abort, stop, status, quit)
//   - SurveyPrompter — диалог параметров плана (survey), coordinator.ParameterPrompter
//   - HuhForm — форма метаданных (huh) с полями шаблона и строками key=value
//   - FeedLine — строка ленты уведомлений (lipgloss)
//
// # Пример
//
//	loop := events.NewLoop()
//	coord := coordinator.New(coordinator.Config{
//	    Engine:   eng,
//	    Invoker:  loop,
//	    Form:     console.NewHuhForm(),
//	    Prompter: console.NewSurveyPrompter(),
//	})
//	station := console.New(console.Config{Coordinator: coord, Plans: lib, Loop: loop})
//	err := station.Run(ctx)
package console
