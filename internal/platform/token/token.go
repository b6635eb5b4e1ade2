package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

// ErrInvalidToken covers every decode failure: bad signature, structural
// corruption, or expiry. Callers get no detail beyond "expired or not" so a
// forged token cannot be probed for partial validity.
var (
	ErrInvalidToken = errors.New("invalid response token")
	ErrExpiredToken = errors.New("expired response token")
)

// MaxTTL bounds the validity window of any response token regardless of
// configuration.
const MaxTTL = 72 * time.Hour

type Claims struct {
	BookingID    int64  `json:"booking_id"`
	GuideID      int64  `json:"guide_id"`
	InvitationID int64  `json:"invitation_id"`
	Action       string `json:"action"`
	jwt.RegisteredClaims
}

// Payload is the decoded, validated content of a response token.
type Payload struct {
	BookingID    int64
	GuideID      int64
	InvitationID int64
	Action       domain.ResponseAction
}

// Codec mints and verifies the signed response links guides act on.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

func (c *Codec) Encode(bookingID, guideID, invitationID int64, action domain.ResponseAction) (string, error) {
	now := time.Now()
	claims := Claims{
		BookingID:    bookingID,
		GuideID:      guideID,
		InvitationID: invitationID,
		Action:       string(action),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Audience:  []string{"wandernest-match"},
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

func (c *Codec) Decode(tokenString string) (*Payload, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}

	action, ok := domain.ParseResponseAction(claims.Action)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims.BookingID <= 0 || claims.GuideID <= 0 || claims.InvitationID <= 0 {
		return nil, ErrInvalidToken
	}

	return &Payload{
		BookingID:    claims.BookingID,
		GuideID:      claims.GuideID,
		InvitationID: claims.InvitationID,
		Action:       action,
	}, nil
}
