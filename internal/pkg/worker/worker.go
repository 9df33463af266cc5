package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront_checkout/pkg/logger"

	"go.uber.org/zap"
)

// Handler 处理单个任务，返回错误时进入重试队列
type Handler[T any] func(ctx context.Context, task T) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不可重试的错误，任务直接丢弃
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 是否为 Permanent 包装的错误
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

type job[T any] struct {
	task  T
	retry int // 重试次数
}

// WorkerPool 固定数量的 worker + 延迟重试队列
type WorkerPool[T any] struct {
	name       string
	taskQueue  chan job[T]
	retryQueue chan job[T] // 重试队列
	handler    Handler[T]
	workerNum  int
	maxRetry   int           // 最大重试次数
	backoff    time.Duration // 第 n 次重试等待 n*backoff

	// OnDrop 任务最终失败 (重试耗尽/队列满/不可重试) 时回调
	OnDrop func(task T, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool[T any](name string, handler Handler[T], workerNum int, bufferSize int) *WorkerPool[T] {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool[T]{
		name:       name,
		taskQueue:  make(chan job[T], bufferSize),
		retryQueue: make(chan job[T], bufferSize/2),
		handler:    handler,
		workerNum:  workerNum,
		maxRetry:   3, // 最多重试3次
		backoff:    time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// WithRetry 调整重试次数和退避间隔
func (p *WorkerPool[T]) WithRetry(maxRetry int, backoff time.Duration) *WorkerPool[T] {
	p.maxRetry = maxRetry
	p.backoff = backoff
	return p
}

func (p *WorkerPool[T]) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.Log.Info("worker pool started", zap.String("pool", p.name), zap.Int("workers", p.workerNum))
}

// Stop 停止所有 worker，队列中未处理的任务被丢弃
func (p *WorkerPool[T]) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *WorkerPool[T]) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.taskQueue:
			p.process(id, j)
		}
	}
}

func (p *WorkerPool[T]) process(id int, j job[T]) {
	err := p.handler(p.ctx, j.task)
	if err == nil {
		return
	}

	log := logger.Log.With(zap.String("pool", p.name), zap.Int("worker", id), zap.Int("retry", j.retry))
	if IsPermanent(err) {
		log.Warn("task failed permanently", zap.Error(err))
		p.drop(j, err)
		return
	}

	// 如果未达到最大重试次数，加入重试队列
	if j.retry < p.maxRetry {
		j.retry++
		select {
		case p.retryQueue <- j:
			log.Info("task added to retry queue", zap.Error(err), zap.Int("max_retry", p.maxRetry))
		default:
			log.Warn("retry queue full, task dropped", zap.Error(err))
			p.drop(j, err)
		}
		return
	}

	log.Warn("task exceeded max retries, dropped", zap.Error(err))
	p.drop(j, err)
}

func (p *WorkerPool[T]) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.retryQueue:
			// 延迟重试，避免立即重试
			t := time.NewTimer(time.Duration(j.retry) * p.backoff)
			select {
			case <-p.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}

			// 重新加入主队列
			select {
			case p.taskQueue <- j:
			default:
				logger.Log.Warn("main queue full, retry dropped", zap.String("pool", p.name))
				p.drop(j, errors.New("task queue full"))
			}
		}
	}
}

func (p *WorkerPool[T]) drop(j job[T], err error) {
	logger.Log.Error("dead letter", zap.String("pool", p.name), zap.Any("task", j.task), zap.Error(err))
	if p.OnDrop != nil {
		p.OnDrop(j.task, err)
	}
}

// AddTask 入队，队列满时直接丢弃并回调 OnDrop
func (p *WorkerPool[T]) AddTask(task T) bool {
	select {
	case p.taskQueue <- job[T]{task: task}:
		return true
	default:
		logger.Log.Warn("worker pool queue full, dropping task", zap.String("pool", p.name))
		p.drop(job[T]{task: task}, errors.New("task queue full"))
		return false
	}
}
