package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供缓存键/provider/命中状态字段，供代理请求日志复用。
func RequestFields(provider, cacheKey string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"provider":  provider,
		"cache_key": cacheKey,
		"cache_hit": cacheHit,
	}
}

// SweepFields 描述一次清理的触发来源与结果统计。
func SweepFields(trigger string, scanned, removed, failed int) logrus.Fields {
	return logrus.Fields{
		"action":  "cache_sweep",
		"trigger": trigger,
		"scanned": scanned,
		"removed": removed,
		"failed":  failed,
	}
}
