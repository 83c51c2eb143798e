package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

func main() {
	utils.InicializarLogger("INFO", "kernel")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <archivo_configuracion>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ejemplo: %s configs/kernel-config.json\n", os.Args[0])
		os.Exit(1)
	}
	configPath := os.Args[1]

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		utils.ErrorLog.Error("El archivo de configuración no existe", "archivo", configPath)
		os.Exit(1)
	}

	if err := inicializarKernel(configPath); err != nil {
		utils.ErrorLog.Error("Error durante la inicialización del Kernel", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := maquina.Arrancar()
	if err != nil {
		utils.ErrorLog.Error("Error al arrancar", "error", err)
	}
	utils.InfoLog.Info("Kernel en ejecución", "decision", d.Tipo, "pid", d.PID)

	go maquina.Timer(ctx, kernelConfig.HZ)

	select {
	case <-ctx.Done():
		utils.InfoLog.Info("Ctrl+C recibido. Finalizando Kernel")
		maquina.Detener()
		// El kernel ve la señal en su próxima entrada
		if _, err := maquina.Interrupcion(); err != nil && !errors.Is(err, kernel.ErrKernelDetenido) {
			utils.ErrorLog.Error("Error al detener el kernel", "error", err)
		}
	case <-maquina.Fin():
	}

	apagar, cancelar := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelar()
	if err := kernelModulo.Server.Shutdown(apagar); err != nil {
		utils.ErrorLog.Error("Error al detener el servidor", "error", err)
	}

	utils.InfoLog.Info("Kernel finalizado", "ticks", maquina.Kernel().Ticks(), "panico", maquina.Panico())
	if maquina.Panico() {
		cancelar()
		stop()
		os.Exit(1)
	}
}
