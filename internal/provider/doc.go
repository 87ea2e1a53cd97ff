// Package provider 聚合视频站点的处理规则，并提供统一的注册入口。
//
// 每个 provider 在 init() 中通过 MustRegister 注册元数据：
//   - cache 模式：弹幕 XML 由本服务回源并缓存到磁盘；
//   - redirect 模式：直接 302 到上游转换服务的浏览入口，不触碰缓存。
//
// Match 根据源 URL 的主机名选择 provider，未命中任何标记时回退到默认 provider。
package provider
