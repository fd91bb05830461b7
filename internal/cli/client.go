package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — задание симуляции из API.
type JobResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	RunCount   int    `json:"run_count"`
	Completed  int    `json:"completed"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// ResultRecord — результат одного прогона из API.
type ResultRecord struct {
	RunIndex  int             `json:"run_index"`
	Succeeded bool            `json:"succeeded"`
	Error     string          `json:"error,omitempty"`
	Outcome   json.RawMessage `json:"outcome,omitempty"`
}

// ResultsResponse — результаты завершённого задания из API.
type ResultsResponse struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Records []ResultRecord `json:"records"`
}

// WorkerResponse — состояние воркера из API.
type WorkerResponse struct {
	Index            int     `json:"index"`
	State            string  `json:"state"`
	CompletedBatches int64   `json:"completed_batches"`
	FailedBatches    int64   `json:"failed_batches"`
	Crashes          int64   `json:"crashes"`
	SuccessRate      float64 `json:"success_rate"`
	LatencyP50Ms     int64   `json:"latency_p50_ms"`
	LatencyP95Ms     int64   `json:"latency_p95_ms"`
	LatencyMaxMs     int64   `json:"latency_max_ms"`
}

// PoolResponse — состояние пула из API.
type PoolResponse struct {
	PoolSize       int              `json:"pool_size"`
	Initialized    bool             `json:"initialized"`
	RetiredWorkers int              `json:"retired_workers"`
	Workers        []WorkerResponse `json:"workers"`
}

// --- Request types ---

// CreateSimulationRequest — запуск симуляции.
type CreateSimulationRequest struct {
	InitialState json.RawMessage `json:"initial_state"`
	Events       json.RawMessage `json:"events,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	RunCount     int             `json:"run_count"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Simulo API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Simulations ---

// CreateSimulation запускает симуляцию.
func (c *Client) CreateSimulation(req CreateSimulationRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/simulations", req, &job)
	return &job, err
}

// ListSimulations возвращает все задания.
func (c *Client) ListSimulations() ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/simulations", &jobs)
	return jobs, err
}

// GetSimulation возвращает задание по ID.
func (c *Client) GetSimulation(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/simulations/"+id, &job)
	return &job, err
}

// GetResults возвращает результаты завершённого задания.
func (c *Client) GetResults(id string) (*ResultsResponse, error) {
	var results ResultsResponse
	err := c.get("/api/v1/simulations/"+id+"/results", &results)
	return &results, err
}

// CancelSimulation отменяет задание.
func (c *Client) CancelSimulation(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/simulations/"+id+"/cancel", nil, &job)
	return &job, err
}

// --- Workers ---

// GetPool возвращает состояние пула воркеров.
func (c *Client) GetPool() (*PoolResponse, error) {
	var pool PoolResponse
	err := c.get("/api/v1/workers", &pool)
	return &pool, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
