package responses

// APIError interface for custom API errors
type APIError interface {
	Error() string
	StatusCode() int
}

type BadRequestError struct {
	Msg string
}

func (e BadRequestError) Error() string {
	return e.Msg
}

func (BadRequestError) StatusCode() int {
	return 400
}

type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	return e.Msg
}

func (UnauthorizedError) StatusCode() int {
	return 401
}

type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string {
	return e.Msg
}

func (NotFoundError) StatusCode() int {
	return 404
}

// StateConflictError covers lifecycle violations: pausing a paused session,
// acting on a terminal session, resuming an active one.
type StateConflictError struct {
	Msg string
}

func (e StateConflictError) Error() string {
	return e.Msg
}

func (StateConflictError) StatusCode() int {
	return 409
}

// InvalidActionError covers action-level rejections: out-of-window
// timestamps, non-monotonic sequence numbers, forbidden transitions.
type InvalidActionError struct {
	Msg string
}

func (e InvalidActionError) Error() string {
	return e.Msg
}

func (InvalidActionError) StatusCode() int {
	return 422
}

type TooManyRequestsError struct {
	Msg string
}

func (e TooManyRequestsError) Error() string {
	return e.Msg
}

func (TooManyRequestsError) StatusCode() int {
	return 429
}

type InternalServerError struct {
	Msg string
}

func (e InternalServerError) Error() string {
	return e.Msg
}

func (InternalServerError) StatusCode() int {
	return 500
}
