package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Manager struct {
	secret               []byte
	accessTokenExpireMin int
}

// Claims carry the identity the permission resolver consumes. Token issuance
// belongs to the external auth service; this manager only signs for tooling
// and validates on every request.
type Claims struct {
	jwt.RegisteredClaims
	ActorID        uuid.UUID `json:"actor_id"`
	Username       string    `json:"username"`
	DepartmentCode string    `json:"department_code"`
	IsSuperuser    bool      `json:"is_superuser"`
}

func NewManager(secret string, accessExpMin int) *Manager {
	return &Manager{
		secret:               []byte(secret),
		accessTokenExpireMin: accessExpMin,
	}
}

func (m *Manager) GenerateAccessToken(actorID uuid.UUID, username, departmentCode string, isSuperuser bool) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(m.accessTokenExpireMin) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   username,
		},
		ActorID:        actorID,
		Username:       username,
		DepartmentCode: departmentCode,
		IsSuperuser:    isSuperuser,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
