package remote

import (
	"context"
	"net/url"
	"strconv"

	"github.com/taxilian/envlog/internal/model"
)

// recordParams encodes r the way the endpoint reads form fields.
// The id is only sent when known.
func recordParams(r model.Record) url.Values {
	v := url.Values{}
	if r.ID != 0 {
		v.Set("id", strconv.Itoa(r.ID))
	}
	v.Set("fecha", r.Date)
	v.Set("hora", r.Time)
	v.Set("jornada", string(r.Shift))
	v.Set("dia", strconv.Itoa(r.Day))
	v.Set("temperatura", strconv.FormatFloat(r.Temperature, 'f', -1, 64))
	v.Set("humedad", strconv.FormatFloat(r.Humidity, 'f', -1, 64))
	v.Set("persona", r.Person)
	v.Set("observaciones", r.Notes)
	return v
}

// List returns every record on the active sheet.
func (c *Client) List(ctx context.Context) ([]model.Record, error) {
	env, err := c.call(ctx, "getData", nil)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	if err := decodeData("getData", env, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create stores r. The returned record carries the id the endpoint assigned
// when it reports one; otherwise r is returned unchanged.
func (c *Client) Create(ctx context.Context, r model.Record) (model.Record, error) {
	env, err := c.call(ctx, "createData", recordParams(r))
	if err != nil {
		return model.Record{}, err
	}
	return mergeReturned(env, r)
}

// Update overwrites the record with r.ID.
func (c *Client) Update(ctx context.Context, r model.Record) (model.Record, error) {
	if r.ID == 0 {
		return model.Record{}, model.ErrMissingID
	}
	env, err := c.call(ctx, "updateData", recordParams(r))
	if err != nil {
		return model.Record{}, err
	}
	return mergeReturned(env, r)
}

// Delete removes the record with id.
func (c *Client) Delete(ctx context.Context, id int) error {
	if id == 0 {
		return model.ErrMissingID
	}
	_, err := c.call(ctx, "deleteData", url.Values{"id": {strconv.Itoa(id)}})
	return err
}

// mergeReturned prefers the record echoed back in data, keeping sent when
// data is absent or carries no id.
func mergeReturned(env *envelope, sent model.Record) (model.Record, error) {
	if !env.hasData() {
		return sent, nil
	}
	var got model.Record
	if err := decodeData("record", env, &got); err != nil {
		// Some deployments answer with a bare id or a message string.
		var id int
		if decodeData("record", env, &id) == nil && id != 0 {
			sent.ID = id
		}
		return sent, nil
	}
	if got.ID == 0 {
		return sent, nil
	}
	if got.Date == "" {
		sent.ID = got.ID
		return sent, nil
	}
	return got, nil
}
