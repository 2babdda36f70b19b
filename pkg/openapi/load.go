package openapi

import (
	"context"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ilkoid/apichat/pkg/s3storage"
)

// newLoader создаёт loader с разрешёнными внешними $ref.
func newLoader(ctx context.Context) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx
	return loader
}

// LoadFile читает описание API из файла (YAML или JSON).
func LoadFile(ctx context.Context, path string) (*openapi3.T, error) {
	doc, err := newLoader(ctx).LoadFromFile(path)
	if err != nil {
		return nil, &SchemaError{Reason: "cannot load " + path, Err: err}
	}
	return doc, nil
}

// LoadURL загружает описание API по http(s) адресу.
func LoadURL(ctx context.Context, rawURL string) (*openapi3.T, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &SchemaError{Reason: "invalid spec url " + rawURL, Err: err}
	}
	doc, err := newLoader(ctx).LoadFromURI(u)
	if err != nil {
		return nil, &SchemaError{Reason: "cannot load " + rawURL, Err: err}
	}
	return doc, nil
}

// LoadData разбирает описание API из памяти.
func LoadData(ctx context.Context, data []byte) (*openapi3.T, error) {
	doc, err := newLoader(ctx).LoadFromData(data)
	if err != nil {
		return nil, &SchemaError{Reason: "cannot parse api description", Err: err}
	}
	return doc, nil
}

// Load выбирает способ загрузки по виду источника:
//   - s3://bucket/key - через S3 (store обязателен)
//   - http:// или https:// - по сети
//   - иначе - путь к локальному файлу
func Load(ctx context.Context, source string, store s3storage.Downloader) (*openapi3.T, error) {
	switch {
	case strings.HasPrefix(source, "s3://"):
		if store == nil {
			return nil, &SchemaError{Reason: "s3 source requires s3 configuration: " + source}
		}
		bucket, key, err := s3storage.ParseURI(source)
		if err != nil {
			return nil, &SchemaError{Reason: "invalid s3 source", Err: err}
		}
		data, err := store.DownloadFile(ctx, bucket, key)
		if err != nil {
			return nil, &SchemaError{Reason: "cannot download " + source, Err: err}
		}
		return LoadData(ctx, data)

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return LoadURL(ctx, source)

	default:
		return LoadFile(ctx, source)
	}
}
