package services

import (
	"regexp"
	"strings"
)

// 寒暄匹配规则
// 命中的请求直接返回固定回复，完全绕过检索和生成
var (
	greetingPattern  = regexp.MustCompile(`^(hi|hello|hey|yo|good morning|good afternoon)$`)
	howAreYouPattern = regexp.MustCompile(`how.*(are you|about you|doing|is it going|about today|your day)`)
)

// 寒暄的固定回复
const (
	greetingReply  = "Hello! I am your Corporate Assistant. How can I help you?"
	howAreYouReply = "I am fully operational. What would you like to know?"
)

// SmallTalk 判断输入是否为寒暄
// 是寒暄时返回固定回复和true，否则返回空串和false
func SmallTalk(query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))

	if greetingPattern.MatchString(q) {
		return greetingReply, true
	}

	if howAreYouPattern.MatchString(q) {
		// 带业务词的问句不算寒暄，交给检索处理
		if !strings.Contains(q, "process") && !strings.Contains(q, "onbord") {
			return howAreYouReply, true
		}
	}

	return "", false
}
