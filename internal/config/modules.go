package config

import (
	_ "github.com/danmaku-cache/danmaku-cache/internal/provider/bilibili"
	_ "github.com/danmaku-cache/danmaku-cache/internal/provider/generic"
)
