package jwttoken

import (
	authmw "giftlist/pkg/platform/middleware/auth"
)

// Adapter exposes the service to the auth middleware.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{OperatorID: claims.OperatorID, Role: claims.Role}, nil
}
