package domain

import (
	"errors"
	"fmt"
)

// 经济引擎对外暴露的错误种类，调用方统一使用 errors.Is 判断。
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrSoldOut              = errors.New("gift is sold out")
	ErrNotListed            = errors.New("token is not listed")
	ErrSelfTrade            = errors.New("cannot buy own token")

	// ErrNotOwner 是 ErrForbidden 的细化，errors.Is(err, ErrForbidden) 同样成立。
	ErrNotOwner = fmt.Errorf("%w: not the token owner", ErrForbidden)

	// ErrConflict 表示唯一约束冲突，例如重复开户或序列号冲突。
	ErrConflict = errors.New("conflict")
)
