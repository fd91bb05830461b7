// Package protocol определяет проводной протокол между диспетчером и
// внешним симуляционным движком.
//
// Движок — непрозрачный внешний компонент, доступный исключительно через
// обмен сообщениями. Каждое сообщение — конверт Message с уникальным ID,
// типом (Kind) и JSON payload. Ответы несут ID исходного запроса.
//
// Типы запросов:
//   - init-engine    — инициализация движка; ответ ready
//   - load-config    — загрузка статической конфигурации; ответ ready
//   - run-batch      — выполнение батча прогонов; поток progress + один
//     терминальный result или error
//   - set-verbosity  — административный вызов, best-effort, без ответа
//   - cleanup        — административный вызов, best-effort, без ответа
//
// Типы ответов:
//   - ready     — движок готов (терминальный для init-engine/load-config)
//   - progress  — частичное выполнение батча (не терминальный)
//   - result    — успешное завершение батча (терминальный)
//   - error     — ошибка выполнения (терминальный)
//
// Payload каждого ответа валидируется строго один раз на границе: всё, что
// не парсится по контракту своего Kind, отклоняется — никакой дефенсивной
// коэрции полей.
//
// Для потоковых транспортов (stdio) используется фрейминг: 4-байтовый
// big-endian префикс длины + JSON.
package protocol
