package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
	log  = base.Sugar()
)

// Init 로거 초기화
// env가 "production"이면 JSON 인코더, 그 외에는 개발용 콘솔 인코더를 사용한다
func Init(level, env string) error {
	var zapConfig zap.Config
	if env == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)

	built, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	base = built
	log = built.Sugar()
	mu.Unlock()
	return nil
}

// ParseLevel 로그 레벨 문자열 파싱 (빈 문자열은 info)
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// L 구조화 로거 반환. Init 전에는 no-op 로거
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Named 컴포넌트 이름이 붙은 하위 로거
func Named(name string) *zap.Logger {
	return L().Named(name)
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Sync 로거 플러시
func Sync() {
	_ = sugar().Sync()
}

// Debug 디버그 로그
func Debug(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

// Info 정보 로그
func Info(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

// Warn 경고 로그
func Warn(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

// Error 에러 로그
func Error(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

// Fatal 치명적 에러 로그 (프로그램 종료)
func Fatal(msg string, keysAndValues ...interface{}) {
	sugar().Fatalw(msg, keysAndValues...)
}
