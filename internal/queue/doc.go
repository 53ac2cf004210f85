// Package queue реализует очередь submissions с приоритетом.
//
// Queue — потокобезопасная блокирующая min-heap очередь:
//   - Put добавляет PrioritizedSubmission
//   - Get извлекает элемент с наименьшим приоритетом (с ожиданием и таймаутом)
//   - TaskDone / UnfinishedTasks ведут учёт незавершённых submissions
//
// Порядок элементов с одинаковым приоритетом не гарантируется.
package queue
