package anticaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"catalogscraper/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	endpoint_create_task       = "createTask"
	endpoint_get_task_result   = "getTaskResult"
	endpoint_get_balance       = "getBalance"
	endpoint_report_incorrect  = "reportIncorrectImageCaptcha"
	report_api_request         = "api.request"
	task_type_image_to_text    = "ImageToTextTask"
	status_processing          = "processing"
	status_ready               = "ready"
	recognition_numeric_prefer = 2
	recognition_length         = 5
)

// api is the JSON-over-POST protocol of the solving service. Every request carries the client key.
type api struct {
	http *resty.Client
	key  string
	tel  telemetry.API
}

type apiResponse struct {
	ErrorId          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (r apiResponse) err(endpoint string) error {
	if r.ErrorId == 0 {
		return nil
	}
	return &ServiceError{
		Endpoint:         endpoint,
		ErrorId:          r.ErrorId,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
	}
}

type imageToTextTask struct {
	Type      string `json:"type"`
	Body      string `json:"body"`
	Phrase    bool   `json:"phrase"`
	Case      bool   `json:"case"`
	Numeric   int    `json:"numeric"`
	Math      bool   `json:"math"`
	MinLength int    `json:"minLength"`
	MaxLength int    `json:"maxLength"`
}

type createTaskRequest struct {
	ClientKey string          `json:"clientKey"`
	Task      imageToTextTask `json:"task"`
}

type createTaskResponse struct {
	apiResponse
	TaskId int64 `json:"taskId"`
}

type taskRequest struct {
	ClientKey string `json:"clientKey"`
	TaskId    int64  `json:"taskId"`
}

type taskSolution struct {
	Text string `json:"text"`
}

// flexFloat accepts both JSON numbers and numeric strings, the service sends cost as a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type taskResultResponse struct {
	apiResponse
	Status     string       `json:"status"`
	Solution   taskSolution `json:"solution"`
	Cost       flexFloat    `json:"cost"`
	CreateTime int64        `json:"createTime"`
	EndTime    int64        `json:"endTime"`
	SolveCount int          `json:"solveCount"`
}

type balanceRequest struct {
	ClientKey string `json:"clientKey"`
}

type balanceResponse struct {
	apiResponse
	Balance float64 `json:"balance"`
}

func (a api) post(ctx context.Context, endpoint string, payload, out any) error {
	res, err := a.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		a.tel.ReportBroken(report_api_request, fmt.Errorf("fetch %s: %w", endpoint, err))
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		a.tel.ReportWarning(report_api_request, endpoint, res.Status())
		return &TransportError{Endpoint: endpoint, StatusCode: res.StatusCode()}
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		a.tel.ReportBroken(report_api_request, fmt.Errorf("decode %s: %w", endpoint, err))
		return &TransportError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode(),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func (a api) createTask(ctx context.Context, image string) (int64, error) {
	var out createTaskResponse
	err := a.post(ctx, endpoint_create_task, createTaskRequest{
		ClientKey: a.key,
		Task: imageToTextTask{
			Type:      task_type_image_to_text,
			Body:      image,
			Phrase:    false,
			Case:      false,
			Numeric:   recognition_numeric_prefer,
			Math:      false,
			MinLength: recognition_length,
			MaxLength: recognition_length,
		},
	}, &out)
	if err != nil {
		return 0, err
	}
	if err := out.err(endpoint_create_task); err != nil {
		return 0, err
	}
	return out.TaskId, nil
}

func (a api) getTaskResult(ctx context.Context, taskId int64) (taskResultResponse, error) {
	var out taskResultResponse
	err := a.post(ctx, endpoint_get_task_result, taskRequest{
		ClientKey: a.key,
		TaskId:    taskId,
	}, &out)
	if err != nil {
		return taskResultResponse{}, err
	}
	if err := out.err(endpoint_get_task_result); err != nil {
		return out, err
	}
	return out, nil
}

func (a api) getBalance(ctx context.Context) (float64, error) {
	var out balanceResponse
	err := a.post(ctx, endpoint_get_balance, balanceRequest{ClientKey: a.key}, &out)
	if err != nil {
		return 0, err
	}
	if err := out.err(endpoint_get_balance); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (a api) reportIncorrect(ctx context.Context, taskId int64) error {
	var out apiResponse
	err := a.post(ctx, endpoint_report_incorrect, taskRequest{
		ClientKey: a.key,
		TaskId:    taskId,
	}, &out)
	if err != nil {
		return err
	}
	return out.err(endpoint_report_incorrect)
}
