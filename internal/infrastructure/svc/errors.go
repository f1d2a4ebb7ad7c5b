package svc

import "errors"

// ErrNoNotifier 错误：没有任何可用的通知输出
var ErrNoNotifier = errors.New("no notifier enabled")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
