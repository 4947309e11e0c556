package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/internal/store"
	"github.com/labelforge/labelforge/pkg/label"
)

type createOrderRequest struct {
	UserID      string        `json:"user_id"`
	Courier     label.Courier `json:"courier"`
	ServiceName string        `json:"service_name"`
	Sender      label.Payload `json:"sender"`
	Receiver    label.Payload `json:"receiver"`
	Package     label.Payload `json:"package"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := s.deps.Users.FindUserByID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	shipment := label.ShipmentRequest{
		Courier:     req.Courier,
		ServiceName: req.ServiceName,
		Sender:      req.Sender,
		Receiver:    req.Receiver,
		Package:     req.Package,
	}

	started := time.Now()
	art, cost, err := s.deps.Orchestrator.Single(r.Context(), user, &shipment)
	if err != nil {
		s.metrics.RecordRequest("create_order", string(req.Courier), "error", time.Since(started).Seconds())
		var pe *label.ProviderError
		if errors.As(err, &pe) {
			s.metrics.RecordProviderError(string(pe.Courier), string(pe.Kind))
		}
		respondError(w, err)
		return
	}
	s.metrics.RecordRequest("create_order", string(req.Courier), "ok", time.Since(started).Seconds())

	order := &store.Order{
		UserID:         user.ID,
		Courier:        req.Courier,
		ServiceName:    req.ServiceName,
		Image:          art.Image,
		TrackingNumber: art.TrackingNumber,
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		Package:        req.Package,
		Cost:           cost,
	}
	id, err := s.deps.Orders.SaveOrder(r.Context(), order)
	if err != nil {
		s.logger.Error("Order persistence failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		respondError(w, err)
		return
	}
	order.ID = id

	respondJSON(w, http.StatusOK, map[string]any{
		"message":      "Order created successfully",
		"data":         order,
		"service_cost": cost,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		respondMessage(w, http.StatusBadRequest, "User ID is required")
		return
	}

	orders, err := s.deps.Orders.FindOrdersByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Orders retrieved successfully",
		"orders":  orders,
	})
}

type priceSingleRequest struct {
	UserID  string        `json:"userId"`
	Courier label.Courier `json:"courier"`
	Service string        `json:"service"`
}

func (s *Server) handlePriceSingle(w http.ResponseWriter, r *http.Request) {
	var req priceSingleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Service == "" {
		respondMessage(w, http.StatusBadRequest, "No Service Provided")
		return
	}

	user, err := s.deps.Users.FindUserByID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	price, err := s.deps.Pricer.Price(user, req.Courier, req.Service)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"price": price})
}

type priceBulkRequest struct {
	UserID    string                  `json:"userId"`
	Shipments []label.ShipmentRequest `json:"shipments"`
}

func (s *Server) handlePriceBulk(w http.ResponseWriter, r *http.Request) {
	var req priceBulkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.deps.Users.FindUserByID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	total, err := s.deps.Pricer.BatchTotal(user, req.Shipments)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"totalPrice": total})
}

type updateServicePriceRequest struct {
	Service  string          `json:"service"`
	CostType string          `json:"costType"`
	Value    decimal.Decimal `json:"value"`
}

func (s *Server) handleUpdateServicePrice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req updateServicePriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Service == "" || req.CostType == "" {
		respondMessage(w, http.StatusBadRequest, "Invalid input: service, costType, and value are required")
		return
	}

	services, err := s.deps.Users.UpdateServiceRate(r.Context(), userID, req.Service, req.CostType, req.Value)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Service cost updated successfully",
		"services": services,
	})
}
