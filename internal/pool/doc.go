// Package pool превращает один логический запрос «выполнить N независимых
// стохастических прогонов» в надёжное параллельное выполнение на
// фиксированном пуле изолированных compute worker'ов.
//
// # Обзор
//
// Supervisor — центральный компонент, который:
//   - Владеет фиксированным набором воркеров (Initialize/Terminate lifecycle)
//   - Выдаёт свободных воркеров и ставит ожидающих в очередь (acquire/release)
//   - Детектирует падения контекстов исполнения и перестраивает их (rebuild)
//   - Разбивает N прогонов на батчи (planner) и раздаёт их динамически
//   - Сливает сигналы прогресса в один монотонный поток
//   - Собирает результаты всех батчей в ровно N канонических записей
//
// # Ключевые гарантии
//
//   - Объединение батчей покрывает [0, N) без перекрытий и дыр.
//   - Завершённый запрос всегда даёт ровно N записей; невыполнимые батчи
//     представлены синтетическими записями о неудаче.
//   - Прогресс монотонен, инкрементируется только по завершению целого
//     батча и не может посчитать ретраенный батч дважды.
//   - На индекс воркера — не более одного rebuild одновременно; после
//     исчерпания попыток индекс навсегда выводится из ротации.
//   - Локальные сбои (таймаут, падение воркера) поглощаются на уровне
//     батча; системные (пул не стартовал, все воркеры мертвы, terminate)
//     отклоняют вызов целиком.
//
// # Обработка падения воркера
//
//  1. Все конверты, привязанные к воркеру, отклоняются с ErrWorkerCrashed.
//  2. Контекст исполнения перестраивается: новое соединение, init-engine,
//     load-config, повторная привязка обработчиков к тому же индексу.
//  3. Только после успешного rebuild индекс возвращается в idle-набор.
//
// Ретрай батча — ответственность вызывающего уровня (runner делает ровно
// одну повторную попытку), а не супервизора: это исключает скрытые
// бесконечные циклы ретраев.
package pool
