package orders

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	qc "github.com/unkn0wn-root/querycache"
)

var validate = validator.New()

// UpdateStatusInput is the validated payload of a status update.
type UpdateStatusInput struct {
	ID     int    `validate:"required,gt=0"`
	Status Status `validate:"required,oneof=pending paid shipped"`
}

func (in UpdateStatusInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("orders: invalid status update: %w", err)
	}
	return nil
}

// UpdateStatusMutation builds the status mutation for order id. On success:
//   - OrderKey(id) is replaced with the server-confirmed record;
//   - OrdersKey() gets only the status of the matching record rewritten, if
//     the collection has been fetched; otherwise it is left alone.
func UpdateStatusMutation(c *qc.Client, api API, id int) *qc.Mutation[Status, Order] {
	return qc.NewMutation(c, qc.MutationDef[Status, Order]{
		Name: "order-status",
		Key:  StatusMutationKey(id),
		Validate: func(s Status) error {
			return UpdateStatusInput{ID: id, Status: s}.Validate()
		},
		Exec: func(ctx context.Context, s Status) (Order, error) {
			return api.UpdateOrderStatus(ctx, id, s)
		},
		Patches: []qc.Patch[Order]{
			qc.ReplaceData(func(Order) qc.Key { return OrderKey(id) }, func(o Order) any { return o }),
			qc.UpdateData(func(Order) qc.Key { return OrdersKey() }, func(old []Order, o Order) []Order {
				return withStatus(old, id, o.Status)
			}),
		},
	})
}

// withStatus returns a copy of list where the record with the given id has
// its status replaced. Other records are copied as-is.
func withStatus(list []Order, id int, status Status) []Order {
	out := make([]Order, len(list))
	for i, o := range list {
		if o.ID == id {
			o.Status = status
		}
		out[i] = o
	}
	return out
}
