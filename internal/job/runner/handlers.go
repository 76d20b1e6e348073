package runner

import (
	"context"
	"encoding/json"

	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	Recompute recomputedomain.Service
	Invoices  invoicedomain.Service
}

// NewHandlers wires the job kinds to the services that execute them.
func NewHandlers(p HandlerParams) jobdomain.Handlers {
	return jobdomain.Handlers{
		jobdomain.KindRecompute:        &recomputeHandler{svc: p.Recompute},
		jobdomain.KindGenerateInvoices: &generateInvoicesHandler{svc: p.Invoices},
	}
}

type recomputeHandler struct {
	svc recomputedomain.Service
}

func (h *recomputeHandler) decode(payload []byte) (recomputedomain.Request, error) {
	var req recomputedomain.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, err
	}
	if _, err := req.Filter(); err != nil {
		return req, err
	}
	return req, nil
}

func (h *recomputeHandler) Scope(payload []byte) (string, error) {
	req, err := h.decode(payload)
	if err != nil {
		return "", err
	}
	return req.ScopeKey(), nil
}

func (h *recomputeHandler) Run(ctx context.Context, payload []byte) (jobdomain.Outcome, error) {
	req, err := h.decode(payload)
	if err != nil {
		return jobdomain.Outcome{}, err
	}
	res, err := h.svc.Recompute(ctx, req)
	if err != nil {
		return jobdomain.Outcome{}, err
	}
	return jobdomain.Outcome{Message: res.Summary(), Result: res}, nil
}

type generateInvoicesHandler struct {
	svc invoicedomain.Service
}

func (h *generateInvoicesHandler) decode(payload []byte) (invoicedomain.GenerateRequest, error) {
	var req invoicedomain.GenerateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, err
	}
	if _, err := req.Scope(); err != nil {
		return req, err
	}
	return req, nil
}

func (h *generateInvoicesHandler) Scope(payload []byte) (string, error) {
	req, err := h.decode(payload)
	if err != nil {
		return "", err
	}
	return req.ScopeKey(), nil
}

func (h *generateInvoicesHandler) Run(ctx context.Context, payload []byte) (jobdomain.Outcome, error) {
	req, err := h.decode(payload)
	if err != nil {
		return jobdomain.Outcome{}, err
	}
	res, err := h.svc.GenerateInvoices(ctx, req)
	if err != nil {
		return jobdomain.Outcome{}, err
	}
	return jobdomain.Outcome{Message: res.Summary(), Result: res}, nil
}
