// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kms

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/fhevm-harness/handle"
)

const maxEncryptRequestSize = 64 << 10

// EncryptRequest is the body of POST /encrypt. Value is a decimal or
// 0x-prefixed hex integer.
type EncryptRequest struct {
	Value    string `json:"value"`
	Type     string `json:"type"`
	Contract string `json:"contract"`
	User     string `json:"user"`
}

// EncryptResponse carries the minted handle as 0x-prefixed hex.
type EncryptResponse struct {
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EncryptHandler serves POST /encrypt for development clients that need
// handles without a coprocessor.
func (k *KMS) EncryptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeEncryptResponse(w, http.StatusMethodNotAllowed, &EncryptResponse{Error: "method not allowed"})
			return
		}

		var req EncryptRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxEncryptRequestSize)).Decode(&req); err != nil {
			writeEncryptResponse(w, http.StatusBadRequest, &EncryptResponse{Error: err.Error()})
			return
		}
		value, t, contract, user, err := req.parse()
		if err != nil {
			writeEncryptResponse(w, http.StatusBadRequest, &EncryptResponse{Error: err.Error()})
			return
		}

		h, err := k.Encrypt(r.Context(), value, t, contract, user)
		switch {
		case err == nil:
		case errors.Is(err, handle.ErrValueOverflow), errors.Is(err, handle.ErrUnknownType):
			writeEncryptResponse(w, http.StatusBadRequest, &EncryptResponse{Error: err.Error()})
			return
		default:
			k.log.Error("encrypt failed", "err", err)
			writeEncryptResponse(w, http.StatusInternalServerError, &EncryptResponse{Error: err.Error()})
			return
		}

		b, err := handle.Bytes32(h)
		if err != nil {
			writeEncryptResponse(w, http.StatusInternalServerError, &EncryptResponse{Error: err.Error()})
			return
		}
		writeEncryptResponse(w, http.StatusOK, &EncryptResponse{Handle: common.Hash(b).Hex()})
	})
}

func (r *EncryptRequest) parse() (*big.Int, handle.Type, common.Address, common.Address, error) {
	value, ok := new(big.Int).SetString(r.Value, 0)
	if !ok {
		return nil, 0, common.Address{}, common.Address{}, fmt.Errorf("invalid value %q", r.Value)
	}
	t, err := handle.ParseType(r.Type)
	if err != nil {
		return nil, 0, common.Address{}, common.Address{}, err
	}
	if !common.IsHexAddress(r.Contract) {
		return nil, 0, common.Address{}, common.Address{}, fmt.Errorf("invalid contract %q", r.Contract)
	}
	if !common.IsHexAddress(r.User) {
		return nil, 0, common.Address{}, common.Address{}, fmt.Errorf("invalid user %q", r.User)
	}
	return value, t, common.HexToAddress(r.Contract), common.HexToAddress(r.User), nil
}

func writeEncryptResponse(w http.ResponseWriter, code int, resp *EncryptResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
