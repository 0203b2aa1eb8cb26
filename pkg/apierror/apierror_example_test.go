package apierror_test

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jimyag/ims/pkg/apierror"
)

// 示例：创建校验错误并生成错误响应
func ExampleNewValidation() {
	err := apierror.NewValidation("pp", 0, "pp must be between 1 and 16")

	errorResp := apierror.NewErrorResponse("req-1", err)
	jsonData, _ := json.Marshal(errorResp)
	fmt.Println(string(jsonData))
	fmt.Println(err.HTTPStatus)
	// Output:
	// {"errors":[{"code":"ValidationFailed","kind":"Validation","message":"pp must be between 1 and 16","details":{"field":"pp","value":"0"}}],"requestID":"req-1"}
	// 422
}

// 示例：按分类处理错误
func ExampleKindOf() {
	err := fmt.Errorf("copy instance: %w", apierror.NewConflict("name", "Instance name 'foo' already exists"))

	switch apierror.KindOf(err) {
	case apierror.KindConflict:
		fmt.Println("conflict")
	case apierror.KindNotFound:
		fmt.Println("not found")
	default:
		fmt.Println("other")
	}
	// Output: conflict
}

// 示例：存储失败保留根因
func ExampleNewOperation() {
	cause := errors.New("database is locked")
	err := apierror.NewOperation("update instance", cause)

	fmt.Println(err.Message)
	fmt.Println(errors.Is(err, cause))
	// Output:
	// Failed to update instance
	// true
}
