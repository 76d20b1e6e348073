package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/shopspring/decimal"
)

const amountPlaces = 2

func roundAmount(raw decimal.Decimal) decimal.Decimal {
	return raw.Round(amountPlaces)
}

// Checksum fingerprints the persisted fields of an outcome so an unchanged
// recompute can skip the write.
func Checksum(out *ratingdomain.Outcome) string {
	parts := make([]string, 0, len(ratingdomain.Components)+len(out.Errors))
	for _, c := range ratingdomain.Components {
		if v, ok := out.Amounts[c]; ok {
			parts = append(parts, string(c)+"="+v.StringFixed(amountPlaces))
		} else {
			parts = append(parts, string(c)+"=null")
		}
	}
	parts = append(parts, "errors="+FormatErrors(out.Errors))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// FormatErrors renders failures as the text stored alongside a waybill.
func FormatErrors(errs []*ratingdomain.FeeError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "; ")
}
