package tcp

/**
 * A tcp server
 */

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tempbottle/tidis/interface/tcp"
	"github.com/tempbottle/tidis/lib/logger"
	"go.uber.org/atomic"
)

// Config stores tcp server properties
type Config struct {
	Address string `yaml:"address"`
	// MaxConnect limits concurrent clients, 0 means unlimited
	MaxConnect uint32        `yaml:"max-connect"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ClientCounter records the number of clients being served
var ClientCounter atomic.Int32

var maxClientsReply = []byte("-ERR max number of clients reached\r\n")

// ListenAndServeWithSignal binds port and handle requests, blocking until receive stop signal
func ListenAndServeWithSignal(cfg *Config, handler tcp.Handler) error {
	closeChan := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
			closeChan <- struct{}{}
		}
	}()
	return ListenAndServeWithContext(cfg, handler, closeChan)
}

// ListenAndServeWithContext binds port and handle requests, blocking until closeChan receives
func ListenAndServeWithContext(cfg *Config, handler tcp.Handler, closeChan <-chan struct{}) error {
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("bind: %s, start listening...", cfg.Address))
	ListenAndServe(listener, handler, closeChan, cfg.MaxConnect)
	return nil
}

// ListenAndServe binds port and handle requests, blocking until close
func ListenAndServe(listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}, maxConnect uint32) {
	// listen signal
	errCh := make(chan error, 1)
	defer close(errCh)
	go func() {
		select {
		case <-closeChan:
			logger.Info("get exit signal")
		case er := <-errCh:
			logger.Info(fmt.Sprintf("accept error: %s", er.Error()))
		}
		logger.Info("shutting down...")
		_ = listener.Close() // listener.Accept() will return err immediately
		_ = handler.Close()  // close connections
	}()

	ctx := context.Background()
	var waitDone sync.WaitGroup
	var clients atomic.Int32
	for {
		conn, err := listener.Accept()
		if err != nil {
			// learn from net/http/serve.go#Serve()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("accept occurs temporary error: %v, retry in 5ms", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			errCh <- err
			break
		}
		if maxConnect > 0 && uint32(clients.Load()) >= maxConnect {
			logger.Warnf("refuse %s: max number of clients reached", conn.RemoteAddr())
			_, _ = conn.Write(maxClientsReply)
			_ = conn.Close()
			continue
		}
		// handle
		logger.Debug("accept link")
		clients.Inc()
		ClientCounter.Inc()
		waitDone.Add(1)
		go func() {
			defer func() {
				waitDone.Done()
				clients.Dec()
				ClientCounter.Dec()
			}()
			handler.Handle(ctx, conn)
		}()
	}
	waitDone.Wait()
}
