package models

import "errors"

// Business-rule violations surfaced to handlers. User-facing payout and
// booking messages stay in Indonesian to match the product copy.
var (
	ErrRoomUnavailable       = errors.New("kamar tidak tersedia")
	ErrBookingNotFound       = errors.New("booking tidak ditemukan")
	ErrPaymentNotFound       = errors.New("pembayaran tidak ditemukan")
	ErrSaldoTidakCukup       = errors.New("Saldo tidak mencukupi")
	ErrPayoutAlreadyDecided  = errors.New("payout sudah diproses")
	ErrInvalidTransition     = errors.New("perubahan status tidak diizinkan")
	ErrBookingTerminal       = errors.New("booking sudah berstatus final")
	ErrPaymentAlreadySettled = errors.New("pembayaran sudah berhasil")
)
