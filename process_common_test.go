package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesProcessName(t *testing.T) {
	assert.True(t, matchesProcessName("WeChatAppEx.exe", "wechatappex.exe", ".exe"))
	assert.True(t, matchesProcessName("WeChatAppEx.exe", "WeChatAppEx", ".exe"))
	assert.True(t, matchesProcessName("wechat", "WeChat", ""))
	assert.False(t, matchesProcessName("notepad.exe", "wechat.exe", ".exe"))
	assert.False(t, matchesProcessName("wechat", "wechat.exe", ""))
}
