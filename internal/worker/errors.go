package worker

import (
	"errors"
	"fmt"
)

// プール利用規約違反を表すセンチネルエラー。
// いずれも回復不能として panic の値に包まれて送出される。
var (
	// ErrNilProcessor はプロセッサが nil の場合
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrNotPrepared は Prepare 前に Dispatch/Join が呼ばれた場合
	ErrNotPrepared = errors.New("worker pool not prepared")

	// ErrAlreadyPrepared は Prepare が二度呼ばれた場合
	ErrAlreadyPrepared = errors.New("worker pool already prepared")

	// ErrAlreadyJoined は Join が二度呼ばれた場合
	ErrAlreadyJoined = errors.New("worker pool already joined")

	// ErrJoined は Join 後に Dispatch が呼ばれた場合
	ErrJoined = errors.New("worker pool joined")

	// ErrSizeMismatch はワーカー数が設定サイズと一致しない場合
	ErrSizeMismatch = errors.New("worker count does not match pool size")

	// ErrNoLiveWorkers は全ワーカーがプロセッサの panic で停止した場合
	ErrNoLiveWorkers = errors.New("all workers have failed")
)

// PanicError はプロセッサ内で発生した panic を表す
type PanicError struct {
	Pool     string
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: worker %d: processor panic: %v", e.Pool, e.WorkerID, e.Value)
}

// Unwrap は panic の値が error の場合それを返す
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// fatal は利用規約違反で panic する
func fatal(op string, err error) {
	panic(fmt.Errorf("worker pool %s: %w", op, err))
}
