package admin

import (
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
)

// Controller exposes the admin console routes. Failures in this domain
// redirect to the login view instead of returning structured errors; that
// is the browser-session UX the console expects.
type Controller struct {
	Auth      *Auth
	Users     users.UserStore
	Logger    users.Logger
	LoginPath string
}

// NewController wires the admin controller.
func NewController(auth *Auth, store users.UserStore) *Controller {
	return &Controller{
		Auth:      auth,
		Users:     store,
		Logger:    users.NewDefaultLogger(),
		LoginPath: "/admin/login",
	}
}

// RegisterRoutes mounts the console under router, typically the /admin
// group. Everything except the login view requires an authenticated
// session.
func RegisterRoutes(router fiber.Router, c *Controller) {
	router.Get("/login", c.LoginShow)
	router.Post("/login", c.LoginPost)
	router.Get("/logout", c.Logout)

	guarded := router.Group("", c.RequireAdmin)
	guarded.Get("/", c.Index)
}

// RequireAdmin guards console routes. An anonymous or stale session is
// redirected to the login view.
func (c *Controller) RequireAdmin(ctx *fiber.Ctx) error {
	user, err := c.Auth.Authenticate(ctx)
	if err != nil {
		if !goerrors.Is(err, ErrUnauthenticated) {
			c.Logger.Error("admin session check failed", "error", err)
		}
		return ctx.Redirect(c.LoginPath, http.StatusFound)
	}

	ctx.Locals("admin_user", user)
	return ctx.Next()
}

// LoginShow renders a minimal login form. Console UI proper is out of
// scope; this is just enough surface for the session handshake.
func (c *Controller) LoginShow(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return ctx.SendString(`<!doctype html>
<title>Admin Login</title>
<form method="post" action="` + c.LoginPath + `">
  <input type="email" name="username" placeholder="email" required>
  <input type="password" name="password" placeholder="password" required>
  <button type="submit">Sign in</button>
</form>`)
}

// LoginPost handles the login form submit. The form field is "username"
// although it carries the email address; the console's form contract
// predates the rename and is kept as is.
func (c *Controller) LoginPost(ctx *fiber.Ctx) error {
	email := ctx.FormValue("username")
	password := ctx.FormValue("password")

	if err := c.Auth.Login(ctx, email, password); err != nil {
		return ctx.Redirect(c.LoginPath, http.StatusFound)
	}

	return ctx.Redirect("/admin/", http.StatusFound)
}

// Logout clears the session and sends the browser back to the login view.
func (c *Controller) Logout(ctx *fiber.Ctx) error {
	if err := c.Auth.Logout(ctx); err != nil {
		c.Logger.Warn("admin logout error", "error", err)
	}
	return ctx.Redirect(c.LoginPath, http.StatusFound)
}

// Index is the guarded console landing: a summary of accounts, sorted by
// email the way the console lists them.
func (c *Controller) Index(ctx *fiber.Ctx) error {
	lister, ok := c.Users.(users.UserLister)
	if !ok {
		return ctx.JSON(fiber.Map{"users": []any{}})
	}

	records, err := lister.List(ctx.UserContext())
	if err != nil {
		c.Logger.Error("admin user listing failed", "error", err)
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"users": []any{}})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Email < records[j].Email
	})

	return ctx.JSON(fiber.Map{"users": records})
}
