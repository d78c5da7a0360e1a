// Copyright 2026 The Cotiza Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import "log/slog"

// Standard attribute keys for consistent logging

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func UserAgent(ua string) slog.Attr {
	return slog.String("user_agent", ua)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

func TenantID(id string) slog.Attr {
	return slog.String("tenant_id", id)
}

func CallerID(id string) slog.Attr {
	return slog.String("caller_id", id)
}

func CorrelationID(id string) slog.Attr {
	return slog.String("correlation_id", id)
}

func QuoteID(id string) slog.Attr {
	return slog.String("quote_id", id)
}

func ItemID(id string) slog.Attr {
	return slog.String("item_id", id)
}

func Fingerprint(fp string) slog.Attr {
	return slog.String("fingerprint", fp)
}

func CacheKey(key string) slog.Attr {
	return slog.String("cache_key", key)
}

func Status(status string) slog.Attr {
	return slog.String("status", status)
}

func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}
