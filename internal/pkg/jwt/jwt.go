package jwt

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
)

const (
	TokenTypeAccess = "access"
	TokenTypeSSE    = "sse"
)

var ErrInvalidClaims = errors.New("token does not carry a worker identity")

// Service issues and checks the bearer tokens that carry the caller's
// worker id and role. Sign-in happens elsewhere; this only speaks the format.
type Service interface {
	GenerateAccessToken(actor worker.Actor) (token string, expiresAt int64, err error)
	GenerateSSEToken(actor worker.Actor) (token string, expiresIn int, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTTL time.Duration
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, accessTTL time.Duration) *JWTService {
	return &JWTService{
		accessTTL: accessTTL,
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(actor worker.Actor) (string, int64, error) {
	expiresAt := time.Now().Add(j.accessTTL).Unix()
	token, err := j.encode(actor, TokenTypeAccess, expiresAt)
	return token, expiresAt, err
}

// GenerateSSEToken issues a five minute token for the event stream, which
// is passed in the query string because EventSource cannot set headers.
func (j *JWTService) GenerateSSEToken(actor worker.Actor) (string, int, error) {
	const expiresIn = 300
	token, err := j.encode(actor, TokenTypeSSE, time.Now().Add(expiresIn*time.Second).Unix())
	if err != nil {
		return "", 0, err
	}
	return token, expiresIn, nil
}

func (j *JWTService) encode(actor worker.Actor, tokenType string, expiresAt int64) (string, error) {
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"worker_id": actor.WorkerID,
		"role":      string(actor.Role),
		"type":      tokenType,
		"exp":       expiresAt,
	})
	return tokenString, err
}

// ActorFromClaims reads the worker identity and token type from verified claims.
func ActorFromClaims(claims map[string]interface{}) (worker.Actor, string, error) {
	workerID, _ := claims["worker_id"].(string)
	role, _ := claims["role"].(string)
	tokenType, _ := claims["type"].(string)
	if workerID == "" || role == "" {
		return worker.Actor{}, "", ErrInvalidClaims
	}
	return worker.Actor{WorkerID: workerID, Role: worker.Role(role)}, tokenType, nil
}
