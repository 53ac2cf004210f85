// Package events — типизированная публикация уведомлений координатора.
//
// # Обзор
//
// Координатор публикует переходы жизненного цикла (Started, Finished,
// Paused, Resumed, Aborted, Ready), документы движка (DocumentYielded),
// ошибки планов (ExceptionRaised) и сообщения для оператора (Notice)
// через Bus.
//
// Publish никогда не блокирует издателя: у каждого подписчика свой
// почтовый ящик и своя горутина доставки. Порядок событий для одного
// подписчика сохраняется. Медленный подписчик не влияет на остальных.
//
// # Доставка в UI поток
//
// Код, который трогает состояние UI, подписывается с опцией Via(invoker).
// Обработчик тогда вызывается через invoker.Invoke, например через Loop,
// который выполняет задачи в потоке UI:
//
//	loop := events.NewLoop()
//	events.On(bus, func(ev events.Ready) {
//	    statusBar.SetText("ready")
//	}, events.Via(loop))
//
//	go loop.Run(ctx)
//
// Опция Synchronous() вызывает обработчик прямо в Publish. Она нужна
// получателям, которым требуется блокирующая доставка (например, запись
// в хранилище до продолжения плана).
package events
