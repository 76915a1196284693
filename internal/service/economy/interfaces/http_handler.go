package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"vault/internal/pkg/logger"
	"vault/internal/service/economy/application"
	"vault/internal/service/economy/domain"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

type actorKey struct{}

// EconomyHandler 封装了经济服务的 HTTP 处理器。
// 身份由网关认证后通过请求头传入，这里不做鉴权。
type EconomyHandler struct {
	coord  *application.Coordinator
	market *application.MarketplaceEngine
}

func NewEconomyHandler(coord *application.Coordinator, market *application.MarketplaceEngine) *EconomyHandler {
	return &EconomyHandler{coord: coord, market: market}
}

// Routes 返回挂好全部路由的 chi.Router
func (h *EconomyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *EconomyHandler) Register(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(traceContext, withActor)

		r.Post("/account", h.openAccount)
		r.Get("/users/{userID}/balance", h.balance)
		r.Get("/users/{userID}/inventory", h.inventory)
		r.Get("/users/{userID}/showcase", h.showcase)
		r.Get("/users/{userID}/tokens", h.ownedTokens)

		r.Get("/gifts", h.activeGifts)
		r.Post("/gifts/{giftID}/send", h.sendGift)
		r.Post("/gifts/{giftID}/sell", h.sellGift)
		r.Post("/gifts/{giftID}/upgrade", h.upgradeGift)
		r.Post("/gifts/{giftID}/display", h.toggleGiftDisplay)

		r.Get("/market", h.marketListings)
		r.Get("/tokens/{tokenID}", h.token)
		r.Post("/tokens/{tokenID}/buy", h.buy)
		r.Post("/tokens/{tokenID}/list", h.listToken)
		r.Post("/tokens/{tokenID}/delist", h.delistToken)
		r.Post("/tokens/{tokenID}/regift", h.regift)
		r.Post("/tokens/{tokenID}/display", h.toggleTokenDisplay)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/gifts", h.createdGifts)
			r.Post("/gifts", h.createGift)
			r.Post("/gifts/{giftID}/deactivate", h.deactivateGift)
			r.Put("/gifts/{giftID}/upgradeable", h.setUpgradeable)
			r.Post("/upgrade", h.adminUpgrade)
			r.Put("/users/{userID}/balance", h.setBalance)
			r.Post("/tokens/{tokenID}/transfer", h.adminTransfer)
		})
	})
}

func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   strings.TrimSpace(r.Header.Get(headerActorID)),
			Role: domain.RoleUser,
		}
		if strings.EqualFold(r.Header.Get(headerActorRole), string(domain.RoleAdmin)) {
			actor.Role = domain.RoleAdmin
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) domain.Actor {
	a, _ := r.Context().Value(actorKey{}).(domain.Actor)
	return a
}

type (
	sendGiftRequest struct {
		ReceiverID string `json:"receiver_id"`
	}
	quantityRequest struct {
		Quantity int64 `json:"quantity"`
	}
	priceRequest struct {
		Price int64 `json:"price"`
	}
	transferRequest struct {
		ToUserID string `json:"to_user_id"`
	}
	upgradeableRequest struct {
		Upgradeable bool `json:"upgradeable"`
	}
	balanceRequest struct {
		Coins int64 `json:"coins"`
	}
	adminUpgradeRequest struct {
		OwnerID string `json:"owner_id"`
		GiftID  string `json:"gift_id"`
		Price   int64  `json:"price"`
	}
)

func (h *EconomyHandler) openAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.coord.OpenAccount(r.Context(), actorFrom(r))
	respond(w, r, http.StatusOK, func() interface{} { return toAccountView(acc) }, err)
}

func (h *EconomyHandler) balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	coins, err := h.coord.Balance(r.Context(), userID)
	respond(w, r, http.StatusOK, func() interface{} { return map[string]interface{}{"user_id": userID, "coins": coins} }, err)
}

func (h *EconomyHandler) inventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.coord.Inventory(r.Context(), chi.URLParam(r, "userID"))
	respond(w, r, http.StatusOK, func() interface{} { return toInventoryViews(items) }, err)
}

func (h *EconomyHandler) showcase(w http.ResponseWriter, r *http.Request) {
	sc, err := h.coord.Showcase(r.Context(), chi.URLParam(r, "userID"))
	respond(w, r, http.StatusOK, func() interface{} {
		return &showcaseView{Gifts: toInventoryViews(sc.Gifts), Tokens: toTokenViews(sc.Tokens)}
	}, err)
}

func (h *EconomyHandler) ownedTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.market.OwnedTokens(r.Context(), chi.URLParam(r, "userID"))
	respond(w, r, http.StatusOK, func() interface{} { return toTokenViews(tokens) }, err)
}

func (h *EconomyHandler) activeGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.coord.ActiveGifts(r.Context())
	respond(w, r, http.StatusOK, func() interface{} { return toGiftViews(gifts) }, err)
}

func (h *EconomyHandler) sendGift(w http.ResponseWriter, r *http.Request) {
	var req sendGiftRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.coord.SendGift(r.Context(), actorFrom(r), req.ReceiverID, chi.URLParam(r, "giftID"))
	respond(w, r, http.StatusOK, func() interface{} { return toSendGiftView(res) }, err)
}

func (h *EconomyHandler) sellGift(w http.ResponseWriter, r *http.Request) {
	req := quantityRequest{Quantity: 1}
	if !decode(w, r, &req) {
		return
	}
	res, err := h.coord.SellGift(r.Context(), actorFrom(r), chi.URLParam(r, "giftID"), req.Quantity)
	respond(w, r, http.StatusOK, func() interface{} { return res }, err)
}

func (h *EconomyHandler) upgradeGift(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.coord.UpgradeFromInventory(r.Context(), actorFrom(r), chi.URLParam(r, "giftID"), req.Price)
	respond(w, r, http.StatusCreated, func() interface{} { return toUpgradeView(res) }, err)
}

func (h *EconomyHandler) toggleGiftDisplay(w http.ResponseWriter, r *http.Request) {
	giftID := chi.URLParam(r, "giftID")
	on, err := h.coord.ToggleGiftDisplay(r.Context(), actorFrom(r), giftID)
	respond(w, r, http.StatusOK, func() interface{} {
		return map[string]interface{}{"gift_id": giftID, "displayed_in_profile": on}
	}, err)
}

func (h *EconomyHandler) marketListings(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.market.Market(r.Context())
	respond(w, r, http.StatusOK, func() interface{} { return toTokenViews(tokens) }, err)
}

func (h *EconomyHandler) token(w http.ResponseWriter, r *http.Request) {
	tok, err := h.market.Token(r.Context(), chi.URLParam(r, "tokenID"))
	respond(w, r, http.StatusOK, func() interface{} { return toTokenView(tok) }, err)
}

func (h *EconomyHandler) buy(w http.ResponseWriter, r *http.Request) {
	res, err := h.market.Buy(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"))
	respond(w, r, http.StatusOK, func() interface{} {
		return &buyView{Token: toTokenView(res.Token), SellerID: res.SellerID, Price: res.Price, BuyerBalance: res.BuyerBalance}
	}, err)
}

func (h *EconomyHandler) listToken(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.market.ListToken(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"), req.Price)
	respond(w, r, http.StatusOK, func() interface{} { return toTokenView(tok) }, err)
}

func (h *EconomyHandler) delistToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.market.DelistToken(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"))
	respond(w, r, http.StatusOK, func() interface{} { return toTokenView(tok) }, err)
}

func (h *EconomyHandler) regift(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.market.Regift(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"), req.ToUserID)
	respond(w, r, http.StatusOK, func() interface{} {
		return &regiftView{Token: toTokenView(res.Token), Fee: res.Fee, SenderBalance: res.SenderBalance}
	}, err)
}

func (h *EconomyHandler) toggleTokenDisplay(w http.ResponseWriter, r *http.Request) {
	tok, err := h.market.ToggleTokenDisplay(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"))
	respond(w, r, http.StatusOK, func() interface{} { return toTokenView(tok) }, err)
}

func (h *EconomyHandler) createdGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.coord.CreatedGifts(r.Context(), actorFrom(r))
	respond(w, r, http.StatusOK, func() interface{} { return toGiftViews(gifts) }, err)
}

func (h *EconomyHandler) createGift(w http.ResponseWriter, r *http.Request) {
	var spec domain.GiftSpec
	if !decode(w, r, &spec) {
		return
	}
	g, err := h.coord.CreateGift(r.Context(), actorFrom(r), spec)
	respond(w, r, http.StatusCreated, func() interface{} { return toGiftView(g) }, err)
}

func (h *EconomyHandler) deactivateGift(w http.ResponseWriter, r *http.Request) {
	g, err := h.coord.DeactivateGift(r.Context(), actorFrom(r), chi.URLParam(r, "giftID"))
	respond(w, r, http.StatusOK, func() interface{} { return toGiftView(g) }, err)
}

func (h *EconomyHandler) setUpgradeable(w http.ResponseWriter, r *http.Request) {
	var req upgradeableRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := h.coord.SetGiftUpgradeable(r.Context(), actorFrom(r), chi.URLParam(r, "giftID"), req.Upgradeable)
	respond(w, r, http.StatusOK, func() interface{} { return toGiftView(g) }, err)
}

func (h *EconomyHandler) adminUpgrade(w http.ResponseWriter, r *http.Request) {
	var req adminUpgradeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.coord.AdminUpgrade(r.Context(), actorFrom(r), req.OwnerID, req.GiftID, req.Price)
	respond(w, r, http.StatusCreated, func() interface{} { return toUpgradeView(res) }, err)
}

func (h *EconomyHandler) setBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := h.coord.SetBalance(r.Context(), actorFrom(r), chi.URLParam(r, "userID"), req.Coins)
	respond(w, r, http.StatusOK, func() interface{} { return toAccountView(acc) }, err)
}

func (h *EconomyHandler) adminTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.market.AdminTransfer(r.Context(), actorFrom(r), chi.URLParam(r, "tokenID"), req.ToUserID)
	respond(w, r, http.StatusOK, func() interface{} { return toTokenView(tok) }, err)
}

func toUpgradeView(res *application.UpgradeResult) *upgradeView {
	return &upgradeView{Token: toTokenView(res.Token), ConsumedGift: res.ConsumedGift}
}

// decode 解析请求体，空请求体保留 dst 的默认值。
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrValidation, "invalid request body"))
		return false
	}
	return true
}

// respond 只有在 err 为 nil 时才调用 body，避免对空结果取字段。
func respond(w http.ResponseWriter, r *http.Request, status int, body func() interface{}, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, body())
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

// classify 把领域错误映射为 HTTP 状态码和错误类别
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return http.StatusConflict, "insufficient_quantity"
	case errors.Is(err, domain.ErrSoldOut):
		return http.StatusConflict, "sold_out"
	case errors.Is(err, domain.ErrNotListed):
		return http.StatusConflict, "not_listed"
	case errors.Is(err, domain.ErrSelfTrade):
		return http.StatusConflict, "self_trade"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
