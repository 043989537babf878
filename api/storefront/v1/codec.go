// Package storefrontv1 описывает транспортный контракт сервиса: сообщения,
// дескриптор gRPC-сервиса и типизированный клиент.
//
// Формат на проводе: JSON, а не protobuf. Сообщения написаны руками как
// Go-структуры с json-тегами, .proto-файлов и сгенерированного кода в
// репозитории нет. Кодек регистрируется в google.golang.org/grpc/encoding под
// именем "json", клиент обязан вызывать методы с grpc.CallContentSubtype(CodecName)
// (NewStorefrontClient делает это сам). Клиент со стандартным proto-кодеком получит
// ошибку декодирования. Переход на protobuf меняет формат и требует новой
// версии пакета (v2).
package storefrontv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName: content-subtype кодека (application/grpc+json).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storefront json codec: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storefront json codec: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOptions возвращает опции вызова, выбирающие JSON-кодек.
func CallOptions(opts ...grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
