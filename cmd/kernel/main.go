package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func main() {
	utils.InicializarLogger("INFO", "kernel")

	utils.InfoLog.Info("Kernel iniciando", "args", os.Args)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <archivo_configuracion>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ejemplo: %s configs/kernel-config-DML.json\n", os.Args[0])
		os.Exit(1)
	}

	configPath := os.Args[1]
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		utils.ErrorLog.Error("El archivo de configuración no existe", "archivo", configPath)
		os.Exit(1)
	}

	config := utils.CargarConfiguracion[KernelConfig](configPath)
	utils.InicializarLogger(config.LogLevel, "kernel")

	kernel, err := NuevoKernel(config)
	if err != nil {
		utils.ErrorLog.Error("Error construyendo el kernel", "error", err)
		os.Exit(1)
	}

	if err := kernel.Arrancar(programaDemostracion); err != nil {
		utils.ErrorLog.Error("Error arrancando el kernel", "error", err)
		os.Exit(1)
	}

	if config.PuertoMonitor > 0 {
		kernel.IniciarMonitor(nil)
	}

	fmt.Println("Presione ENTER para iniciar los planificadores...")
	lector := bufio.NewReader(os.Stdin)
	lector.ReadString('\n')

	kernel.IniciarPlanificacion()
	fmt.Println("Planificadores iniciados. 'p' vuelca procesos, 'kill <pid>' termina, Ctrl+C sale.")

	go consola(kernel, lector)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	utils.InfoLog.Info("Señal recibida. Finalizando Kernel")
	kernel.Detener()
	fmt.Println("\nKernel finalizando...")
}

// consola atiende la entrada estándar: registra cada línea en el historial
// y resuelve los comandos de depuración
func consola(kernel *Kernel, lector *bufio.Reader) {
	for {
		linea, err := lector.ReadString('\n')
		if err != nil {
			return
		}
		linea = strings.TrimSpace(linea)
		if linea == "" {
			continue
		}
		kernel.RegistrarComando(linea)

		campos := strings.Fields(linea)
		switch campos[0] {
		case "p":
			// El equivalente del Ctrl-P de la consola serie
			fmt.Print(kernel.VolcarProcesos())
		case "metricas":
			fmt.Printf("%v\n", kernel.Metricas())
		case "kill":
			if len(campos) < 2 {
				fmt.Println("uso: kill <pid>")
				continue
			}
			pid, err := strconv.Atoi(campos[1])
			if err != nil {
				fmt.Println("pid inválido")
				continue
			}
			if kernel.MatarExterno(pid) < 0 {
				fmt.Println("no existe el proceso", pid)
			}
		}
	}
}

// programaDemostracion es la carga que corre la shell al arrancar el
// binario: muestra el banner y deja un par de hijos computando y durmiendo
func programaDemostracion(sh *Proc) {
	buffer := make([]byte, 2048)
	if n := sh.Draw(buffer); n > 0 {
		fmt.Print(string(buffer[:n-1]))
	}

	for i := 0; i < 2; i++ {
		sh.Fork(func(p *Proc) {
			for {
				p.Computar(20)
				p.Sleep(10)
			}
		})
	}
	for {
		sh.Wait()
	}
}
