package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCP Server
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
	logger      *zap.Logger
}

func NewMCPServer(logger *zap.Logger) *MCPServer {
	apiURL := os.Getenv("PLANNER_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: os.Getenv("PLANNER_API_USERNAME"),
		apiPassword: os.Getenv("PLANNER_API_PASSWORD"),
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// Run reads one JSON-RPC request per line and writes one response per line
func (s *MCPServer) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err != io.EOF {
				s.logger.Error("read request", zap.Error(err))
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.logger.Warn("parse request", zap.Error(err))
			continue
		}

		// notifications carry no id and get no response
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		response := s.handleRequest(req)
		responseBytes, _ := json.Marshal(response)
		fmt.Fprintln(out, string(responseBytes))
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "planner-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

var scheduleFields = map[string]Property{
	"title":       {Type: "string", Description: "Schedule title"},
	"start_date":  {Type: "string", Description: "First day, YYYY-MM-DD"},
	"end_date":    {Type: "string", Description: "Last day, YYYY-MM-DD (defaults to start_date)"},
	"category":    {Type: "string", Description: "Optional category"},
	"description": {Type: "string", Description: "Optional notes"},
}

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	updateFields := map[string]Property{"id": {Type: "string", Description: "Schedule ID (uuid)"}}
	for k, v := range scheduleFields {
		updateFields[k] = v
	}

	tools := []Tool{
		{
			Name:        "planner_month",
			Description: "Month calendar: 35 day cells with Korean public holidays and the number of schedules per day.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"year":  {Type: "integer", Description: "Year, e.g. 2025 (defaults to the current year)"},
					"month": {Type: "integer", Description: "Month 1-12 (defaults to the current month)"},
				},
			},
		},
		{
			Name:        "planner_day",
			Description: "Holiday name and schedules of one day.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"date": {Type: "string", Description: "YYYY-MM-DD (defaults to today)"}},
			},
		},
		{
			Name:        "planner_list_schedules",
			Description: "Schedules overlapping an inclusive date range.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"from": {Type: "string", Description: "YYYY-MM-DD"},
					"to":   {Type: "string", Description: "YYYY-MM-DD"},
				},
				Required: []string{"from", "to"},
			},
		},
		{
			Name:        "planner_create_schedule",
			Description: "Create a schedule spanning one or more whole days.",
			InputSchema: InputSchema{Type: "object", Properties: scheduleFields, Required: []string{"title", "start_date"}},
		},
		{
			Name:        "planner_update_schedule",
			Description: "Change some fields of a schedule; omitted fields stay as they are.",
			InputSchema: InputSchema{Type: "object", Properties: updateFields, Required: []string{"id"}},
		},
		{
			Name:        "planner_delete_schedule",
			Description: "Delete a schedule by ID.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"id": {Type: "string", Description: "Schedule ID (uuid)"}},
				Required:   []string{"id"},
			},
		},
		{
			Name:        "planner_holidays",
			Description: "Korean public holidays of a year, or of one month, as a date to name map.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"year":  {Type: "integer", Description: "Year (defaults to the current year)"},
					"month": {Type: "integer", Description: "Month 1-12 to narrow the list"},
				},
			},
		},
	}

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result string
	var isError bool
	args := params.Arguments

	switch params.Name {
	case "planner_month":
		q := url.Values{}
		if y := argString(args, "year"); y != "" {
			q.Set("year", y)
		}
		if m := argString(args, "month"); m != "" {
			n, err := strconv.Atoi(m)
			if err != nil || n < 1 || n > 12 {
				result, isError = "month must be 1-12", true
				break
			}
			q.Set("month", strconv.Itoa(n-1))
		}
		result, isError = s.apiGet("/api/calendar", q)
	case "planner_day":
		q := url.Values{}
		if d := argString(args, "date"); d != "" {
			q.Set("date", d)
		}
		result, isError = s.apiGet("/api/day", q)
	case "planner_list_schedules":
		q := url.Values{"from": {argString(args, "from")}, "to": {argString(args, "to")}}
		result, isError = s.apiGet("/api/schedules", q)
	case "planner_create_schedule":
		result, isError = s.apiRequest(http.MethodPost, "/api/schedules", nil, scheduleBody(args))
	case "planner_update_schedule":
		id := argString(args, "id")
		if id == "" {
			result, isError = "id is required", true
			break
		}
		result, isError = s.apiRequest(http.MethodPut, "/api/schedules/"+url.PathEscape(id), nil, scheduleBody(args))
	case "planner_delete_schedule":
		id := argString(args, "id")
		if id == "" {
			result, isError = "id is required", true
			break
		}
		result, isError = s.apiRequest(http.MethodDelete, "/api/schedules/"+url.PathEscape(id), nil, nil)
	case "planner_holidays":
		q := url.Values{}
		if y := argString(args, "year"); y != "" {
			q.Set("year", y)
		}
		if m := argString(args, "month"); m != "" {
			q.Set("month", m)
		}
		result, isError = s.apiGet("/api/holidays", q)
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

// argString renders a tool argument; JSON numbers arrive as float64
func argString(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// scheduleBody keeps only the schedule fields that were passed
func scheduleBody(args map[string]interface{}) map[string]string {
	body := make(map[string]string)
	for k := range scheduleFields {
		if _, ok := args[k]; ok {
			body[k] = argString(args, k)
		}
	}
	return body
}

func (s *MCPServer) apiGet(path string, query url.Values) (string, bool) {
	return s.apiRequest(http.MethodGet, path, query, nil)
}

func (s *MCPServer) apiRequest(method, path string, query url.Values, body interface{}) (string, bool) {
	target := s.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, target, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	req.SetBasicAuth(s.apiUsername, s.apiPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	// stdout carries the protocol, so logs go to stderr
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := NewMCPServer(logger)
	server.Run(os.Stdin, os.Stdout)
}
