package generator

import (
	"regexp"
	"strings"
)

// PostProcess 校验模型输出并剥掉外层代码块，返回可直接使用的 Markdown。
// Titles come from writing.ExtractTitle and digests from the publisher, so
// only the cleaned text is returned.
func PostProcess(raw string) (string, error) {
	md := stripFences(raw)
	if md == "" {
		return "", ErrEmptyOutput
	}
	return md, nil
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*?)\\n?```$")

// 模型偶尔会把整段输出包进代码块，这里剥掉外层围栏。
func stripFences(raw string) string {
	md := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(md); m != nil {
		md = strings.TrimSpace(m[1])
	}
	return md
}
