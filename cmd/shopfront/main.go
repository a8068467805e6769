package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/shopfront/client-go/internal/approval"
	"github.com/shopfront/client-go/internal/auth"
	"github.com/shopfront/client-go/internal/cart"
	"github.com/shopfront/client-go/internal/catalog"
	"github.com/shopfront/client-go/internal/checkout"
	"github.com/shopfront/client-go/internal/gateway"
	"github.com/shopfront/client-go/internal/orders"
	"github.com/shopfront/client-go/internal/session"
	"github.com/shopfront/client-go/internal/storage"
	"github.com/shopfront/client-go/pkg/config"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
	"github.com/shopfront/client-go/pkg/logger"
	"github.com/shopfront/client-go/pkg/metrics"
	"github.com/shopfront/client-go/pkg/square"
)

const usage = `usage: shopfront <command> [args]

commands:
  products [-page N] [-search TERM]   list the catalog
  product <id>                        show one product
  cart                                show the cart
  cart-add <id> [-qty N]              add a product to the cart
  cart-remove <id>                    remove a product from the cart
  cart-set <id> -qty N                change a line's quantity
  cart-clear                          empty the cart
  login -username U -password P       sign in
  register                            create an account
  logout                              sign out
  whoami                              show the signed-in shopper
  checkout                            place and pay for an order
  orders                              show order history
  order <id>                          show one order's detail
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "shopfront"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "shopfront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	app, err := newApp(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logg.Error(ctx, "error during shutdown", err)
		}
	}()

	if err := app.Run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, pkgerrors.UserMessage(err))
		logg.Debug(ctx, fmt.Sprintf("command failed: %v", err))
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	log     *logger.Logger
	records storage.Store
	session *session.Store
	cart    *cart.Store
	catalog *catalog.Service
	orders  *orders.Service
	auth    *auth.Service
}

func newApp(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*app, error) {
	records, err := storage.Open(ctx, cfg.Storage, logg)
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	sessionStore, err := session.NewStore(records, logg)
	if err != nil {
		return nil, err
	}
	if err := sessionStore.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	cartStore, err := cart.NewStore(records)
	if err != nil {
		return nil, err
	}
	if err := cartStore.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}

	requestMetrics := metrics.NewRequestMetrics(prometheus.NewRegistry())
	api, err := gateway.New(cfg.API, sessionStore, logg, requestMetrics)
	if err != nil {
		return nil, err
	}

	catalogService, err := catalog.NewService(api)
	if err != nil {
		return nil, err
	}
	ordersService, err := orders.NewService(api)
	if err != nil {
		return nil, err
	}
	authService, err := auth.NewService(api, sessionStore)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     logg,
		records: records,
		session: sessionStore,
		cart:    cartStore,
		catalog: catalogService,
		orders:  ordersService,
		auth:    authService,
	}, nil
}

func (a *app) Close() error {
	return multierr.Append(nil, a.records.Close())
}

func (a *app) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "products":
		return a.runProducts(ctx, args)
	case "product":
		return a.runProduct(ctx, args)
	case "cart":
		return a.runCartShow(ctx)
	case "cart-add":
		return a.runCartAdd(ctx, args)
	case "cart-remove":
		return a.runCartRemove(ctx, args)
	case "cart-set":
		return a.runCartSet(ctx, args)
	case "cart-clear":
		return a.cart.Clear(ctx)
	case "login":
		return a.runLogin(ctx, args)
	case "register":
		return a.runRegister(ctx, args)
	case "logout":
		return a.session.Logout(ctx)
	case "whoami":
		return a.runWhoami(ctx)
	case "checkout":
		return a.runCheckout(ctx, args)
	case "orders":
		return a.runOrders(ctx)
	case "order":
		return a.runOrder(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown command %q", command))
	}
}

func (a *app) runProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	search := fs.String("search", "", "search term")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid products flags")
	}

	result, err := a.catalog.List(ctx, *page, *search)
	if err != nil {
		return err
	}

	fmt.Printf("%d products\n", result.Count)
	for _, product := range result.Results {
		fmt.Printf("  %6d  %-32s %10s\n", product.ID, product.Name, product.Price.StringFixed(2))
	}
	if result.Next != "" {
		fmt.Printf("more on page %d\n", *page+1)
	}
	return nil
}

func (a *app) runProduct(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	product, err := a.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n\nprice: %s  in stock: %d  status: %s\n",
		product.Name, product.Description, product.Price.StringFixed(2), product.InventoryCount, product.Status)
	return nil
}

func (a *app) runCartShow(ctx context.Context) error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return nil
	}
	for _, item := range items {
		fmt.Printf("  %6d  %-32s %3d x %10s = %10s\n",
			item.Product.ID, item.Product.Name, item.Quantity,
			item.Product.Price.StringFixed(2), item.Subtotal().StringFixed(2))
	}
	fmt.Printf("total: %s (%d items)\n", a.cart.Total().StringFixed(2), a.cart.Count())
	return nil
}

func (a *app) runCartAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cart-add", flag.ContinueOnError)
	qty := fs.Int("qty", 1, "quantity to add")
	id, err := parseIDBefore(fs, args)
	if err != nil {
		return err
	}

	product, err := a.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	err = a.cart.Add(ctx, cart.Product{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.Price,
		Image: product.Image,
	}, *qty)
	if err != nil {
		return err
	}
	fmt.Printf("added %d x %s\n", *qty, product.Name)
	return nil
}

func (a *app) runCartRemove(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	return a.cart.Remove(ctx, id)
}

func (a *app) runCartSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cart-set", flag.ContinueOnError)
	qty := fs.Int("qty", 0, "new quantity, 0 removes the line")
	id, err := parseIDBefore(fs, args)
	if err != nil {
		return err
	}
	return a.cart.UpdateQuantity(ctx, id, *qty)
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid login flags")
	}

	err := a.auth.Login(ctx, auth.LoginInput{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	if identity := a.session.Identity(); identity != nil {
		fmt.Printf("signed in as %s\n", identity.Name)
	}
	return nil
}

func (a *app) runRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "account name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm-password", "", "account password, repeated")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid register flags")
	}

	err := a.auth.Register(ctx, auth.RegisterInput{
		Name:            *name,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *confirm,
	})
	if err != nil {
		return err
	}
	fmt.Println("account created and signed in")
	return nil
}

func (a *app) runWhoami(ctx context.Context) error {
	identity := a.session.Identity()
	if identity == nil {
		fmt.Println("not signed in")
		return nil
	}
	fmt.Printf("%s <%s> (user %d)\n", identity.Name, identity.Email, identity.UserID)
	return nil
}

func (a *app) runCheckout(ctx context.Context, args []string) error {
	if !a.session.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in before checking out")
	}

	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	name := fs.String("name", "", "recipient name")
	street := fs.String("street", "", "street address")
	city := fs.String("city", "", "city")
	state := fs.String("state", "", "state or region")
	zip := fs.String("zip", "", "postal code")
	country := fs.String("country", "", "country")
	cardSource := fs.String("card", "", "tokenized card source id, pays through Square instead of the browser redirect")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout flags")
	}

	orchestrator, err := checkout.NewOrchestrator(a.cart, a.orders, a.cfg.Square.Currency, a.log)
	if err != nil {
		return err
	}
	err = orchestrator.SubmitShipping(orders.ShippingAddress{
		Name:    *name,
		Street:  *street,
		City:    *city,
		State:   *state,
		ZipCode: *zip,
		Country: *country,
	})
	if err != nil {
		return err
	}

	if *cardSource != "" {
		if err := a.payWithCard(ctx, orchestrator, *cardSource); err != nil {
			return err
		}
	} else {
		listener, err := approval.NewListener(a.cfg.Callback, a.log)
		if err != nil {
			return err
		}
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer listener.Close(ctx)

		// The provider's return URL is registered out of band and must point
		// at this listener; the backend never transmits it.
		fmt.Printf("waiting for payment approval at %s\n", listener.URL())
		if err := orchestrator.Run(ctx, listener); err != nil {
			return err
		}
	}

	pending := orchestrator.Pending()
	fmt.Printf("order %s paid, thank you\n", pending.ID)
	return nil
}

// payWithCard charges the tokenized card through Square and hands the
// resulting payment id to the orchestrator for backend verification.
func (a *app) payWithCard(ctx context.Context, orchestrator *checkout.Orchestrator, sourceID string) error {
	provider, err := square.NewClient(ctx, a.cfg.Square, a.log)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "card payments are not configured")
	}

	amountCents := a.cart.Total().Mul(decimal.NewFromInt(100)).IntPart()
	pending, err := orchestrator.CreateOrder(ctx)
	if err != nil {
		return err
	}

	payment, err := provider.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: amountCents,
		Currency:    a.cfg.Square.Currency,
		LocationID:  a.cfg.Square.LocationID,
		SourceID:    sourceID,
		ReferenceID: pending.ID,
	})
	if err != nil {
		return err
	}
	paymentID := ""
	if id := payment.GetID(); id != nil {
		paymentID = *id
	}

	return orchestrator.OnApprove(ctx, paymentID)
}

func (a *app) runOrders(ctx context.Context) error {
	history, err := a.orders.History(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no orders yet")
		return nil
	}
	for _, order := range history {
		fmt.Printf("order %d  %s  %s  %s\n",
			order.ID, order.CreatedAt.Format("2006-01-02"), order.Status, order.TotalAmount.StringFixed(2))
		for _, item := range order.Items {
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			fmt.Printf("    %-32s %3d x %10s = %10s\n",
				item.Product.Name, item.Quantity, item.UnitPrice.StringFixed(2), lineTotal.StringFixed(2))
		}
	}
	return nil
}

func (a *app) runOrder(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order id %q", args[0]))
	}

	order, err := a.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("order %d  %s  %s  %s\n",
		order.ID, order.CreatedAt.Format("2006-01-02"), order.Status, order.TotalAmount.StringFixed(2))
	for _, item := range order.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Printf("    %-32s %3d x %10s = %10s\n",
			item.Product.Name, item.Quantity, item.UnitPrice.StringFixed(2), lineTotal.StringFixed(2))
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid product id %q", args[0]))
	}
	return id, nil
}

func parseIDBefore(fs *flag.FlagSet, args []string) (int64, error) {
	if len(args) < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	id, err := parseID(args[:1])
	if err != nil {
		return 0, err
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flags")
	}
	return id, nil
}
