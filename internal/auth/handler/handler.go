package handler

import (
	"errors"
	"net/http"

	"social-login/internal/auth/credential"
	"social-login/internal/auth/flow"
	"social-login/internal/auth/provider"
	"social-login/internal/logger"
	"social-login/internal/session"
	"social-login/internal/web"

	"github.com/gin-gonic/gin"
)

const (
	LoginPath     = "/login/"
	CallbackPath  = "/login/callback/"
	CancelledPath = "/login/cancelled/"
	ErrorPath     = "/login/error/"
	LogoutPath    = "/logout/"
)

// Options configures the HTTP binding of the login flow.
type Options struct {
	// DefaultProvider owns /login/ and /login/callback/.
	DefaultProvider string
	Cookie          session.CookieOptions

	// Revoker withdraws credentials on logout when the scheme supports it.
	Revoker credential.Revoker
}

type Handler struct {
	flow      *flow.Controller
	providers *provider.Registry
	opts      Options
}

func NewHandler(ctrl *flow.Controller, registry *provider.Registry, opts Options) *Handler {
	return &Handler{
		flow:      ctrl,
		providers: registry,
		opts:      opts,
	}
}

// ProviderCallbackPath is the callback route a provider is registered with.
func ProviderCallbackPath(id, defaultID string) string {
	if id == defaultID {
		return CallbackPath
	}
	return LoginPath + id + "/callback/"
}

// RegisterRoutes mounts the login routes. guard runs in front of the two
// flow steps only.
func (h *Handler) RegisterRoutes(r gin.IRouter, guard ...gin.HandlerFunc) {
	r.GET(LoginPath, chain(guard, h.login(h.opts.DefaultProvider))...)
	r.GET(CallbackPath, chain(guard, h.callback(h.opts.DefaultProvider))...)
	r.GET(CancelledPath, h.cancelled)
	r.GET(ErrorPath, h.errorPage)
	r.POST(LogoutPath, h.Logout)

	for _, id := range h.providers.IDs() {
		switch id {
		case "callback", "cancelled", "error":
			logger.Warn("provider id collides with a login route, skipped", map[string]any{"provider": id})
			continue
		}
		r.GET(LoginPath+id+"/", chain(guard, h.login(id))...)
		// The default provider's callback only lives at CallbackPath.
		if id != h.opts.DefaultProvider {
			r.GET(ProviderCallbackPath(id, h.opts.DefaultProvider), chain(guard, h.callback(id))...)
		}
	}
}

func chain(guard []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guard)+1)
	out = append(out, guard...)
	return append(out, h)
}

func (h *Handler) login(providerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.flow.Login(c.Request, providerID)
		h.write(c, providerID, out, err)
	}
}

func (h *Handler) callback(providerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.flow.Callback(c.Request, providerID)
		h.write(c, providerID, out, err)
	}
}

func (h *Handler) write(c *gin.Context, providerID string, out flow.Outcome, err error) {
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown oauth provider"})
			return
		}
		logger.Error("login flow failed", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	for _, ck := range out.Cookies {
		http.SetCookie(c.Writer, ck)
	}

	switch out.Kind {
	case flow.KindRedirect:
		if out.Credential != nil {
			session.SetCookie(c.Writer, out.Credential.Value, out.Credential.ExpiresAt, h.opts.Cookie)
		}
		c.Redirect(http.StatusFound, out.URL)

	case flow.KindRender:
		page := web.ErrorPage{LoginURL: LoginPath}
		if out.Error != nil {
			page.Provider = out.Error.Provider
			page.Code = string(out.Error.Code)
			page.ErrorName = out.Error.ErrorName()
		}
		c.HTML(out.Status, out.View, page)

	case flow.KindImmediate:
		for k, vs := range out.Immediate.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		c.Status(out.Immediate.Status)
		_, _ = c.Writer.Write(out.Immediate.Body)

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) cancelled(c *gin.Context) {
	c.HTML(http.StatusOK, flow.ViewLoginCancelled, web.CancelledPage{LoginURL: LoginPath})
}

func (h *Handler) errorPage(c *gin.Context) {
	c.HTML(http.StatusOK, flow.ViewAuthenticationError, web.ErrorPage{
		ErrorName: c.Query("error_name"),
		LoginURL:  LoginPath,
	})
}

// Logout revokes the presented credential when possible and clears the
// cookie. It always answers 204.
func (h *Handler) Logout(c *gin.Context) {
	value := session.FromRequest(c.Request, h.opts.Cookie)
	if value != "" && h.opts.Revoker != nil {
		if err := h.opts.Revoker.Revoke(c.Request.Context(), value); err != nil {
			logger.Warn("credential revoke failed", map[string]any{"error": err.Error()})
		}
	}

	session.ClearCookie(c.Writer, h.opts.Cookie)

	logger.Info("logout", map[string]any{"ip": c.ClientIP()})
	c.Status(http.StatusNoContent)
}
