// Package cli реализует инструмент командной строки Simulo.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Simulo API.
// Работает через HTTP, не импортирует внутренние пакеты диспетчера.
// CLI используется для запуска симуляций, отслеживания прогресса,
// получения результатов и наблюдения за пулом воркеров.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Simulo API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	sims, err := client.ListSimulations()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: simulo sim list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - sim: start, list, show, results, cancel, watch
//   - workers: show
//
// Каждая группа создаётся через фабричную функцию (NewSimCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
