package types

// Topic 发布订阅主题
//
// 主题是一个斜杠分隔的路径字符串，本层只把它当作不透明的键，
// 相等性为精确字符串匹配。
type Topic string

// DefaultTopic 参考 UI 使用的聊天主题
const DefaultTopic Topic = "/topic_simple_text/1/chat/proto"

// String 返回主题字符串
func (t Topic) String() string {
	return string(t)
}

// IsEmpty 检查主题是否为空
func (t Topic) IsEmpty() bool {
	return t == ""
}
