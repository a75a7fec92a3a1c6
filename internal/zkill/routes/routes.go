package routes

import (
	"context"
	"net/http"

	"go-gatewatch/internal/zkill/dto"
	"go-gatewatch/internal/zkill/services"

	"github.com/danielgtaylor/huma/v2"
)

// Routes handles HTTP endpoints for the zkill module.
type Routes struct {
	consumer *services.RedisQConsumer
}

// NewRoutes creates a new Routes instance.
func NewRoutes(consumer *services.RedisQConsumer) *Routes {
	return &Routes{consumer: consumer}
}

// RegisterRoutes registers all zkill routes.
func (r *Routes) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getZkillStatus",
		Method:      http.MethodGet,
		Path:        "/zkill/status",
		Summary:     "Get RedisQ consumer status",
		Description: "Returns the current status of the ZKillboard RedisQ consumer service",
		Tags:        []string{"Module Status", "Zkill"},
	}, r.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "controlZkillService",
		Method:      http.MethodPost,
		Path:        "/zkill/control",
		Summary:     "Control RedisQ consumer",
		Description: "Start, stop, or restart the ZKillboard RedisQ consumer service",
		Tags:        []string{"Zkill"},
	}, r.ControlService)
}

// GetStatusInput represents query parameters for the status endpoint.
type GetStatusInput struct{}

// GetStatus returns the current service status.
func (r *Routes) GetStatus(ctx context.Context, input *GetStatusInput) (*dto.ServiceStatusOutput, error) {
	return r.consumer.GetStatus(), nil
}

// ControlServiceBody represents the request body for service control.
type ControlServiceBody struct {
	Body dto.ServiceControlInput `json:"body" required:"true"`
}

// ControlService handles service control operations.
func (r *Routes) ControlService(ctx context.Context, input *ControlServiceBody) (*dto.ServiceControlOutput, error) {
	var message string
	var success bool

	switch input.Body.Action {
	case "start":
		if err := r.consumer.Start(context.WithoutCancel(ctx)); err != nil {
			message = "Failed to start service: " + err.Error()
		} else {
			message = "Service started successfully"
			success = true
		}
	case "stop":
		if err := r.consumer.Stop(); err != nil {
			message = "Failed to stop service: " + err.Error()
		} else {
			message = "Service stopped successfully"
			success = true
		}
	case "restart":
		if r.consumer.IsRunning() {
			if err := r.consumer.Stop(); err != nil {
				message = "Failed to stop service: " + err.Error()
				break
			}
		}
		if err := r.consumer.Start(context.WithoutCancel(ctx)); err != nil {
			message = "Failed to restart service: " + err.Error()
		} else {
			message = "Service restarted successfully"
			success = true
		}
	default:
		return nil, huma.Error400BadRequest("unknown action: " + input.Body.Action)
	}

	return &dto.ServiceControlOutput{
		Body: dto.ServiceControlResponse{
			Success: success,
			Message: message,
			Status:  r.consumer.GetStatus().Body.Status,
		},
	}, nil
}
