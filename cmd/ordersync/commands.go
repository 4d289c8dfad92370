package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/unkn0wn-root/querycache/orders"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (a *app) list(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("list", out)
	status := fs.String("status", "", "only orders with this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := orders.ParseStatus(*status)
	if err != nil {
		return err
	}

	list, err := a.svc.Orders(ctx, st)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tDATE\tITEMS\tSTATUS")
	for _, o := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", o.ID, o.UserID, o.Date, o.ItemCount(), o.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := orders.CountByStatus(a.svc.OrdersNow("").Orders)
	fmt.Fprintf(out, "\n%d orders:", len(list))
	for _, s := range orders.Statuses {
		fmt.Fprintf(out, " %s=%d", s, counts[s])
	}
	fmt.Fprintln(out)
	return nil
}

func (a *app) show(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("show", out)
	id := fs.Int("id", 0, "order id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("show: -id is required")
	}

	v, err := a.svc.Order(*id)
	if err != nil {
		return err
	}
	defer v.Close()
	snap, err := v.Wait(ctx)
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}
	return printOrder(out, snap.Order)
}

func (a *app) setStatus(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("set-status", out)
	id := fs.Int("id", 0, "order id")
	status := fs.String("status", "", "new status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := orders.ParseStatus(*status)
	if err != nil {
		return err
	}

	o, err := a.svc.UpdateStatus(ctx, *id, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "order %d is now %s\n", o.ID, o.Status)
	return nil
}

func printOrder(out io.Writer, o *orders.OrderWithProducts) error {
	fmt.Fprintf(out, "order %d  user %d  %s  %s\n\n", o.ID, o.UserID, o.Date, o.Status)

	title := make(map[int]string, len(o.ProductDetails))
	price := make(map[int]float64, len(o.ProductDetails))
	for _, p := range o.ProductDetails {
		title[p.ID] = p.Title
		price[p.ID] = p.Price
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE")
	for _, it := range o.Products {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", title[it.ProductID], it.Quantity, price[it.ProductID])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ntotal %.2f\n", o.Total())
	return nil
}
