package segment

import "net/url"

// buildHeaders returns the request headers for strategy, applied on top of
// baseHeaders. sourcePage, m3u8URL and segmentURL ground the Referer/Origin
// values; origins vary in which one they expect, hence the fallback order
// in orderedStrategies.
func buildHeaders(strategy HeaderStrategy, baseHeaders map[string]string, sourcePage, m3u8URL, segmentURL string) map[string]string {
	out := make(map[string]string, len(baseHeaders)+2)
	for k, v := range baseHeaders {
		out[k] = v
	}

	switch strategy {
	case StrategySourcePage:
		if sourcePage != "" {
			out["Referer"] = sourcePage
			out["Origin"] = origin(sourcePage)
		}
	case StrategySegmentDomain:
		if segmentURL != "" {
			d := origin(segmentURL)
			out["Referer"] = d + "/"
			out["Origin"] = d
		}
	case StrategyM3U8URL:
		if m3u8URL != "" {
			out["Referer"] = m3u8URL
			out["Origin"] = origin(m3u8URL)
		}
	case StrategyNoReferer:
		delete(out, "Referer")
		delete(out, "Origin")
	}

	return out
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
