// Package testutil 提供测试用的等待与接收辅助函数
package testutil
