package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/rentkit/pkg/config/xconf"
	"github.com/omeyang/rentkit/pkg/distributed/xdlock"
	"github.com/omeyang/rentkit/pkg/storage/xinvalidate"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

// defaultProbeInterval probe 命令的默认间隔
const defaultProbeInterval = 5 * time.Second

// namespaceFlag flag 对象保存解析状态，每个命令需要独立实例
func namespaceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "namespace",
		Aliases: []string{"n"},
		Usage:   "缓存命名空间（空值为 app）",
	}
}

// 创建所有子命令。
func createCommands(rt *runtime) []*cli.Command {
	return []*cli.Command{
		createBackendCommand(rt),
		createGetCommand(rt),
		createDelCommand(rt),
		createInvalidateCommand(rt),
		createLockCommand(rt),
		createProbeCommand(rt),
	}
}

// stdout 返回命令结果的输出目标
func stdout(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

// withTimeout 按全局 --timeout 限定命令执行时间
func withTimeout(ctx context.Context, cmd *cli.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cmd.Root().Duration("timeout"))
}

// =============================================================================
// backend / get / del
// =============================================================================

func createBackendCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "backend",
		Usage: "查看选中的后端并执行一次 Ping",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kv, err := rt.client(ctx, cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()
			return cmdBackend(ctx, stdout(cmd), kv)
		},
	}
}

// cmdBackend 输出后端类型；Ping 失败时以退出码 1 结束
func cmdBackend(ctx context.Context, w io.Writer, kv *xkv.Client) error {
	fmt.Fprintf(w, "backend: %s\n", kv.Kind())
	if err := kv.Ping(ctx); err != nil {
		fmt.Fprintf(w, "ping: %v\n", err)
		return &exitError{code: 1}
	}
	fmt.Fprintln(w, "ping: ok")
	return nil
}

func createGetCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "读取缓存条目，未命中时退出码为 1",
		ArgsUsage: "<key>",
		Flags:     []cli.Flag{namespaceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := strings.TrimSpace(cmd.Args().First())
			if key == "" || cmd.Args().Len() > 1 {
				return &usageError{msg: "get 需要且只需要一个 key"}
			}
			kv, err := rt.client(ctx, cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()
			return cmdGet(ctx, stdout(cmd), kv, cmd.String("namespace"), key)
		},
	}
}

func cmdGet(ctx context.Context, w io.Writer, kv *xkv.Client, namespace, key string) error {
	value, ok := kv.Get(ctx, xkv.JoinKey(namespace, key))
	if !ok {
		fmt.Fprintln(w, "(miss)")
		return &exitError{code: 1}
	}
	fmt.Fprintln(w, string(value))
	return nil
}

func createDelCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "删除缓存条目",
		ArgsUsage: "<key>...",
		Flags: []cli.Flag{
			namespaceFlag(),
			&cli.BoolFlag{
				Name:  "pattern",
				Usage: "把参数视为 glob 模式（仅 TCP Redis 后端支持）",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return &usageError{msg: "del 至少需要一个 key"}
			}
			m, err := rt.invalidator(ctx, cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()
			return cmdDel(ctx, stdout(cmd), m, cmd.String("namespace"), args, cmd.Bool("pattern"))
		},
	}
}

func cmdDel(ctx context.Context, w io.Writer, m *xinvalidate.Manager, namespace string, args []string, pattern bool) error {
	if pattern {
		for _, p := range args {
			m.InvalidatePattern(ctx, namespace, p)
		}
		fmt.Fprintf(w, "invalidated %d pattern(s)\n", len(args))
		return nil
	}
	m.InvalidateBatch(ctx, namespace, args)
	fmt.Fprintf(w, "invalidated %d key(s)\n", len(args))
	return nil
}

// =============================================================================
// invalidate
// =============================================================================

func createInvalidateCommand(rt *runtime) *cli.Command {
	// action 把实体 flag 转换为一次领域失效调用
	action := func(required string, fn func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager)) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			if err := requireFlags(cmd, required); err != nil {
				return err
			}
			m, err := rt.invalidator(ctx, cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()
			fn(ctx, cmd, m)
			fmt.Fprintf(stdout(cmd), "invalidated %s\n", cmd.Name)
			return nil
		}
	}
	stringFlag := func(name, usage string) cli.Flag {
		return &cli.StringFlag{Name: name, Usage: usage}
	}

	return &cli.Command{
		Name:  "invalidate",
		Usage: "按实体变更失效相关缓存并触发页面重新生成",
		Commands: []*cli.Command{
			{
				Name:  "property",
				Usage: "房源变更",
				Flags: []cli.Flag{
					stringFlag("id", "房源 ID（必填）"),
					stringFlag("owner", "房东 ID"),
					stringFlag("city", "城市"),
				},
				Action: action("id", func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager) {
					m.Property(ctx, xinvalidate.PropertyChange{
						ID:      cmd.String("id"),
						OwnerID: cmd.String("owner"),
						City:    cmd.String("city"),
					})
				}),
			},
			{
				Name:  "rental",
				Usage: "租约变更",
				Flags: []cli.Flag{
					stringFlag("id", "租约 ID（必填）"),
					stringFlag("property", "房源 ID"),
					stringFlag("tenant", "租客 ID"),
					stringFlag("owner", "房东 ID"),
				},
				Action: action("id", func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager) {
					m.Rental(ctx, xinvalidate.RentalChange{
						ID:         cmd.String("id"),
						PropertyID: cmd.String("property"),
						TenantID:   cmd.String("tenant"),
						OwnerID:    cmd.String("owner"),
					})
				}),
			},
			{
				Name:  "tenant",
				Usage: "租客变更",
				Flags: []cli.Flag{
					stringFlag("id", "租客 ID（必填）"),
					stringFlag("owner", "房东 ID"),
				},
				Action: action("id", func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager) {
					m.Tenant(ctx, xinvalidate.TenantChange{ID: cmd.String("id"), OwnerID: cmd.String("owner")})
				}),
			},
			{
				Name:  "owner",
				Usage: "房东级聚合变更",
				Flags: []cli.Flag{stringFlag("id", "房东 ID（必填）")},
				Action: action("id", func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager) {
					m.Owner(ctx, cmd.String("id"))
				}),
			},
			{
				Name:  "payment",
				Usage: "支付记录变更",
				Flags: []cli.Flag{
					stringFlag("rental", "租约 ID（必填）"),
					stringFlag("tenant", "租客 ID"),
					stringFlag("owner", "房东 ID"),
				},
				Action: action("rental", func(ctx context.Context, cmd *cli.Command, m *xinvalidate.Manager) {
					m.Payment(ctx, xinvalidate.PaymentChange{
						RentalID: cmd.String("rental"),
						TenantID: cmd.String("tenant"),
						OwnerID:  cmd.String("owner"),
					})
				}),
			},
		},
	}
}

// requireFlags 校验必填 flag 非空
func requireFlags(cmd *cli.Command, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(cmd.String(name)) == "" {
			return &usageError{msg: fmt.Sprintf("%s 需要 --%s", cmd.FullName(), name)}
		}
	}
	return nil
}

// =============================================================================
// lock
// =============================================================================

func createLockCommand(rt *runtime) *cli.Command {
	keyArg := func(cmd *cli.Command) (string, error) {
		key := strings.TrimSpace(cmd.Args().First())
		if key == "" || cmd.Args().Len() > 1 {
			return "", &usageError{msg: cmd.FullName() + " 需要且只需要一个 key"}
		}
		return key, nil
	}

	return &cli.Command{
		Name:  "lock",
		Usage: "分布式锁操作",
		Commands: []*cli.Command{
			{
				Name:      "acquire",
				Usage:     "获取锁并输出 token，锁被占用时退出码为 1",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "expire", Usage: "锁过期时间（默认取配置）"},
					&cli.IntFlag{Name: "retries", Usage: "失败后的重试次数（默认取配置）"},
					&cli.DurationFlag{Name: "retry-delay", Usage: "重试间隔（默认取配置）"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key, err := keyArg(cmd)
					if err != nil {
						return err
					}
					m, err := rt.locker(ctx, cmd)
					if err != nil {
						return err
					}
					return cmdLockAcquire(ctx, stdout(cmd), m, key, acquireOptions(cmd))
				},
			},
			{
				Name:      "release",
				Usage:     "按 key 无条件释放锁",
				ArgsUsage: "<key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key, err := keyArg(cmd)
					if err != nil {
						return err
					}
					m, err := rt.locker(ctx, cmd)
					if err != nil {
						return err
					}
					ctx, cancel := withTimeout(ctx, cmd)
					defer cancel()
					m.Release(ctx, key)
					fmt.Fprintf(stdout(cmd), "released %s\n", key)
					return nil
				},
			},
			{
				Name:      "status",
				Usage:     "查看锁是否被持有",
				ArgsUsage: "<key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key, err := keyArg(cmd)
					if err != nil {
						return err
					}
					m, err := rt.locker(ctx, cmd)
					if err != nil {
						return err
					}
					ctx, cancel := withTimeout(ctx, cmd)
					defer cancel()
					state := "free"
					if m.IsLocked(ctx, key) {
						state = "locked"
					}
					fmt.Fprintf(stdout(cmd), "%s: %s\n", key, state)
					return nil
				},
			},
		},
	}
}

// acquireOptions 只把显式设置的 flag 转为选项，其余沿用配置默认值
func acquireOptions(cmd *cli.Command) []xdlock.AcquireOption {
	var opts []xdlock.AcquireOption
	if cmd.IsSet("expire") {
		opts = append(opts, xdlock.WithExpire(cmd.Duration("expire")))
	}
	if cmd.IsSet("retries") {
		opts = append(opts, xdlock.WithRetries(cmd.Int("retries")))
	}
	if cmd.IsSet("retry-delay") {
		opts = append(opts, xdlock.WithRetryDelay(cmd.Duration("retry-delay")))
	}
	return opts
}

func cmdLockAcquire(ctx context.Context, w io.Writer, m *xdlock.Manager, key string, opts []xdlock.AcquireOption) error {
	lease, ok := m.AcquireLease(ctx, key, opts...)
	if !ok {
		fmt.Fprintf(w, "%s: busy\n", key)
		return &exitError{code: 1}
	}
	fmt.Fprintf(w, "%s: acquired token=%s expires=%s\n",
		key, lease.Token(), lease.ExpiresAt().UTC().Format(time.RFC3339))
	return nil
}

// =============================================================================
// probe
// =============================================================================

func createProbeCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "周期性 Ping 后端，直到 Ctrl+C 或达到 --count；--config 文件变更时重新选择后端",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "探测间隔",
				Value:   defaultProbeInterval,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "探测次数，0 表示不限",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			interval := cmd.Duration("interval")
			count := cmd.Int("count")
			if interval <= 0 || count < 0 {
				return &usageError{msg: "probe 需要正的 --interval 和非负的 --count"}
			}
			kv, err := rt.client(ctx, cmd)
			if err != nil {
				return err
			}
			reloads, stop, err := rt.watchSettings(ctx)
			if err != nil {
				return err
			}
			defer stop()
			p := &prober{
				w:       stdout(cmd),
				kv:      kv,
				timeout: cmd.Root().Duration("timeout"),
				reloads: reloads,
				reopen:  rt.reopen,
			}
			return p.run(ctx, interval, count)
		},
	}
}

// prober 周期性探测后端。reloads 为 nil 时不响应配置变更。
type prober struct {
	w       io.Writer
	kv      *xkv.Client
	timeout time.Duration
	reloads <-chan xconf.Settings
	reopen  func(context.Context, xconf.Settings) *xkv.Client
}

// run 按固定间隔 Ping 后端，每次输出一行结果。
// ctx 结束时正常返回；有限次数探测中出现失败时退出码为 1。
func (p *prober) run(ctx context.Context, interval time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for n := 1; ; n++ {
		if !probeOnce(ctx, p.w, p.kv, p.timeout) {
			failures++
		}
		if count > 0 && n >= count {
			break
		}
		if !p.wait(ctx, ticker.C) {
			return nil
		}
	}
	if failures > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// wait 等待下一个 tick，期间到达的配置变更立即切换后端。ctx 结束时返回 false。
func (p *prober) wait(ctx context.Context, tick <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case s := <-p.reloads:
			p.kv = p.reopen(ctx, s)
			fmt.Fprintf(p.w, "%s config reloaded, backend %s\n", time.Now().UTC().Format(time.RFC3339), p.kv.Kind())
		case <-tick:
			return true
		}
	}
}

func probeOnce(ctx context.Context, w io.Writer, kv *xkv.Client, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := kv.Ping(ctx)
	elapsed := time.Since(start).Round(time.Microsecond)
	stamp := start.UTC().Format(time.RFC3339)
	if err != nil {
		fmt.Fprintf(w, "%s %s down %s: %v\n", stamp, kv.Kind(), elapsed, err)
		return false
	}
	fmt.Fprintf(w, "%s %s up %s\n", stamp, kv.Kind(), elapsed)
	return true
}
