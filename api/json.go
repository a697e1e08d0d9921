package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sugawarayuuta/sonnet"
)

// sonnetSerializer is echo's JSON codec backed by sonnet.
type sonnetSerializer struct{}

func (sonnetSerializer) Serialize(c echo.Context, i any, indent string) error {
	b, err := sonnet.Marshal(i)
	if err != nil {
		return err
	}
	if indent != "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", indent); err != nil {
			return err
		}
		b = buf.Bytes()
	}
	b = append(b, '\n')
	_, err = c.Response().Write(b)
	return err
}

func (sonnetSerializer) Deserialize(c echo.Context, i any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if err := sonnet.Unmarshal(body, i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("malformed request body: %v", err)).SetInternal(err)
	}
	return nil
}
