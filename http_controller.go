package users

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// APIController exposes the lifecycle operations over the API trust domain.
// Handlers stay thin: bind, validate the payload shape, delegate, map the
// error taxonomy onto status codes.
type APIController struct {
	Debug         bool
	Logger        Logger
	Auther        *Auther
	Register      *RegisterUserHandler
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *FinalizePasswordResetHandler
	Verification  *VerificationHandler
	Profile       *UpdateProfileHandler
	Cache         Cache
	Tasks         TaskDispatcher
}

// APIControllerOption mutates an APIController during construction.
type APIControllerOption func(*APIController) *APIController

// NewAPIController builds a controller and panics on missing collaborators;
// wiring bugs should not survive startup.
func NewAPIController(opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in api controller...")
	}
	if c.Register == nil || c.ResetInit == nil || c.ResetFinalize == nil || c.Verification == nil || c.Profile == nil {
		panic("Missing lifecycle handlers in api controller...")
	}

	return c
}

// WithControllerDebug toggles verbose payload dumps.
func WithControllerDebug(debug bool) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Debug = debug
		return c
	}
}

// WithControllerLogger replaces the fallback logger.
func WithControllerLogger(logger Logger) APIControllerOption {
	return func(c *APIController) *APIController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithAuther sets the credential verifier.
func WithAuther(auther *Auther) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Auther = auther
		return c
	}
}

// WithLifecycleHandlers sets the command handlers behind the lifecycle
// routes.
func WithLifecycleHandlers(
	register *RegisterUserHandler,
	resetInit *InitializePasswordResetHandler,
	resetFinalize *FinalizePasswordResetHandler,
	verification *VerificationHandler,
	profile *UpdateProfileHandler,
) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Register = register
		c.ResetInit = resetInit
		c.ResetFinalize = resetFinalize
		c.Verification = verification
		c.Profile = profile
		return c
	}
}

// WithCache sets the cache collaborator behind the liveness route.
func WithCache(cache Cache) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Cache = cache
		return c
	}
}

// WithTaskDispatcher sets the background job collaborator.
func WithTaskDispatcher(tasks TaskDispatcher) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Tasks = tasks
		return c
	}
}

// RegisterAPIRoutes mounts the controller under router, typically the
// /api/v1 group.
func RegisterAPIRoutes(router fiber.Router, c *APIController) {
	router.Post("/auth/login", c.Login)
	router.Post("/auth/register", c.RegisterUser)
	router.Post("/auth/forgot-password", c.ForgotPassword)
	router.Post("/auth/reset-password", c.ResetPassword)
	router.Post("/auth/request-verify-token", c.RequestVerifyToken)
	router.Post("/auth/verify", c.Verify)

	protected := router.Group("", RequireBearer(c.Auther))
	protected.Get("/users/me", c.Me)
	protected.Patch("/users/me", c.UpdateMe)
	protected.Get("/ping", c.Ping)
	protected.Get("/ping_redis", c.PingRedis)
	protected.Post("/celery/helloworld", c.EnqueueHelloWorld)
}

// LoginPayload is the login request body.
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *APIController) Login(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(map[string]any{"email": payload.Email}))
		fmt.Println("=========================")
	}

	token, err := a.Auther.Login(ctx.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(token)
}

// RegisterPayload is the registration request body.
type RegisterPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Timezone string `json:"timezone" form:"timezone"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *APIController) RegisterUser(ctx *fiber.Ctx) error {
	payload := new(RegisterPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return respondValidation(ctx, err)
	}

	user, err := a.Register.Execute(ctx.UserContext(), RegisterUserMessage{
		Email:    payload.Email,
		Password: payload.Password,
		Timezone: payload.Timezone,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(user)
}

// EmailPayload carries the single email field shared by the forgot-password
// and request-verify operations.
type EmailPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *APIController) ForgotPassword(ctx *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	if err := a.ResetInit.Execute(ctx.UserContext(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return respondError(ctx, err)
	}

	// Accepted either way: the response must not reveal whether the
	// account exists.
	return ctx.SendStatus(http.StatusAccepted)
}

// ResetPasswordPayload completes a password reset.
type ResetPasswordPayload struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *APIController) ResetPassword(ctx *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	err := a.ResetFinalize.Execute(ctx.UserContext(), FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.SendStatus(http.StatusOK)
}

func (a *APIController) RequestVerifyToken(ctx *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	if err := a.Verification.Request(ctx.UserContext(), RequestVerificationMessage{Email: payload.Email}); err != nil {
		return respondError(ctx, err)
	}

	return ctx.SendStatus(http.StatusAccepted)
}

// VerifyPayload confirms email ownership.
type VerifyPayload struct {
	Token string `json:"token" form:"token"`
}

// Validate will run validation rules
func (r VerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *APIController) Verify(ctx *fiber.Ctx) error {
	payload := new(VerifyPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	user, err := a.Verification.Confirm(ctx.UserContext(), ConfirmVerificationMessage{Token: payload.Token})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(user)
}

func (a *APIController) Me(ctx *fiber.Ctx) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return respondError(ctx, ErrAuthenticationFailed)
	}
	return ctx.JSON(user)
}

// UpdateMePayload carries the allowed profile changes.
type UpdateMePayload struct {
	Email    *string `json:"email" form:"email"`
	Password *string `json:"password" form:"password"`
	Timezone *string `json:"timezone" form:"timezone"`
}

// Validate will run validation rules
func (r UpdateMePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
	)
}

func (a *APIController) UpdateMe(ctx *fiber.Ctx) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return respondError(ctx, ErrAuthenticationFailed)
	}

	payload := new(UpdateMePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return respondValidation(ctx, err)
	}

	updated, err := a.Profile.Execute(ctx.UserContext(), UpdateProfileMessage{
		UserID:   user.ID,
		Email:    payload.Email,
		Password: payload.Password,
		Timezone: payload.Timezone,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(updated)
}

func (a *APIController) Ping(ctx *fiber.Ctx) error {
	a.Logger.Info("Ping endpoint")
	return ctx.SendString("pong")
}

func (a *APIController) PingRedis(ctx *fiber.Ctx) error {
	if a.Cache == nil {
		return respondError(ctx, goerrors.New("cache not configured", goerrors.CategoryOperation))
	}

	if err := a.Cache.Set(ctx.UserContext(), "ping", "pong from redis server"); err != nil {
		return respondError(ctx, err)
	}

	value, err := a.Cache.Get(ctx.UserContext(), "ping")
	if err != nil {
		return respondError(ctx, err)
	}

	a.Logger.Info("Ping Redis endpoint")
	return ctx.SendString(value)
}

func (a *APIController) EnqueueHelloWorld(ctx *fiber.Ctx) error {
	if a.Tasks == nil {
		return respondError(ctx, goerrors.New("task dispatcher not configured", goerrors.CategoryOperation))
	}

	jobID, err := a.Tasks.Submit(ctx.UserContext(), "celery_worker.tasks.hello_world")
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"task_id": jobID,
		"status":  "Hello World task enqueued",
	})
}

// respondError maps the error taxonomy onto structured failure responses.
func respondError(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status < http.StatusBadRequest || status > 599 {
		status = statusFromCategory(richErr.Category)
	}

	return ctx.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   richErr.Message,
			"category":  string(richErr.Category),
			"text_code": richErr.TextCode,
		},
	})
}

func respondValidation(ctx *fiber.Ctx, err error) error {
	return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"message":  "Error validating payload",
			"category": string(goerrors.CategoryValidation),
			"fields":   FormatValidationErrorToMap(err),
		},
	})
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryOperation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> reason map for responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}
