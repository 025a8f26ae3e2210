// jsbind 加载引擎配置，绑定宿主模块后执行脚本，用于手工验证绑定结果。
//
//	jsbind -config engine.yaml -e 'host.apiVersion' scripts/main.ts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"Scardice-jsbind/jsengine"
	"Scardice-jsbind/jsengine/definition"
	_ "Scardice-jsbind/jsengine/gojavm"
	_ "Scardice-jsbind/jsengine/quickjs"
	"Scardice-jsbind/logger"
)

func main() {
	configPath := flag.String("config", "", "引擎配置文件 (YAML)")
	engineName := flag.String("engine", "", "覆盖配置中的引擎类型: goja 或 quickjs")
	expr := flag.String("e", "", "在脚本之后求值并打印的表达式")
	flag.Parse()

	if err := run(*configPath, *engineName, *expr, flag.Args()); err != nil {
		logger.M().Errorf("%v", err)
		_ = logger.M().Sync()
		os.Exit(1)
	}
	_ = logger.M().Sync()
}

func run(configPath, engineName, expr string, scripts []string) error {
	cfg := jsengine.DefaultConfig()
	if configPath != "" {
		loaded, err := jsengine.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if engineName != "" {
		cfg.Name = jsengine.EngineName(engineName)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := logger.Init(cfg.LogMode); err != nil {
		return err
	}

	host, err := hostModule()
	if err != nil {
		return err
	}
	engine, err := jsengine.Open(context.Background(), cfg, host)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Dispose() }()

	for _, script := range scripts {
		if err := engine.Require(script); err != nil {
			return err
		}
	}
	if expr == "" {
		return nil
	}
	ret, err := engine.EvalWithResult(expr)
	if err != nil {
		return err
	}
	fmt.Printf("%v\n", ret)
	return nil
}

// hostModule 是命令行暴露给脚本的 host 对象。
func hostModule() (jsengine.Module, error) {
	def, err := definition.Aggregate(
		definition.ConstantsFunc(func() map[string]any {
			return map[string]any{
				"apiVersion": jsengine.APIVersion.String(),
				"goVersion":  runtime.Version(),
			}
		}),
		definition.MustFunction("env", func(name string) string { return os.Getenv(name) }),
		definition.MustFunction("print", func(args ...any) {
			fmt.Println(args...)
		}),
		definition.MustProperty("args", func() []string { return flag.Args() }, nil),
	)
	if err != nil {
		return jsengine.Module{}, err
	}
	return jsengine.Module{Name: "host", Definition: def}, nil
}
