package main

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Kernel es el núcleo completo: tabla de procesos, reloj, memoria física,
// sistema de archivos, colas de swap y CPUs. Cada instancia es
// independiente; el binario arma una sola.
type Kernel struct {
	config   *KernelConfig
	politica Politica

	ptable    tablaProcesos
	tickslock Spinlock
	ticks     int

	proximoPID int
	initProc   *Proc

	cpus    []*CPU
	memoria *MemoriaFisica
	fs      *SistemaArchivos

	colaSwapOut    ColaSwap
	colaSwapIn     ColaSwap
	limiteArchivos atomic.Int32
	contSwapOut    atomic.Int32
	contSwapIn     atomic.Int32
	swapListo      atomic.Bool

	primeraVez atomic.Bool
	detenido   atomic.Bool

	consola historialConsola

	servidorMonitor *utils.HTTPServer
	semMonitor      *utils.Semaforo

	// cpuExterna presta identidad de CPU a los hilos ajenos al kernel (el
	// arranque y el monitor); muExterna los serializa
	cpuExterna *CPU
	muExterna  sync.Mutex
}

// NuevoKernel construye un kernel a partir de su configuración
func NuevoKernel(cfg *KernelConfig) (*Kernel, error) {
	cfg.aplicarDefaults()

	politica, err := politicaPorNombre(cfg.Algoritmo)
	if err != nil {
		return nil, err
	}

	fs, err := nuevoSistemaArchivos(cfg.DirectorioSwap)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		config:   cfg,
		politica: politica,
		memoria:  nuevaMemoriaFisica(cfg.MarcosLibres, cfg.TamPagina),
		fs:       fs,
	}

	inicializarLock(&k.ptable.lock, "ptable")
	inicializarLock(&k.tickslock, "tiempo")
	k.colaSwapOut.inicializar("cola_swap_out")
	k.colaSwapIn.inicializar("cola_swap_in")

	// Dos descriptores reservados arrancan contados contra la cuota
	k.limiteArchivos.Store(2)
	k.proximoPID = 1

	for i := 0; i < cfg.CPUs; i++ {
		k.cpus = append(k.cpus, nuevaCPU(i))
	}
	k.cpuExterna = nuevaCPU(-1)
	k.semMonitor = utils.NewSemaforo(4)

	utils.InfoLog.Info("Kernel construido",
		"algoritmo", politica.Nombre(),
		"cpus", cfg.CPUs,
		"quantum", cfg.Quantum)
	return k, nil
}

// Arrancar crea el primer proceso (init), que en su primer despacho repone
// el log del sistema de archivos, crea los demonios de swap y forkea el
// programa raíz bajo el nombre de la shell
func (k *Kernel) Arrancar(raiz func(*Proc)) error {
	k.muExterna.Lock()
	defer k.muExterna.Unlock()

	if k.initProc != nil {
		return fmt.Errorf("el kernel ya fue arrancado")
	}

	c := k.cpuExterna
	p := k.crearProceso(c)
	if p == nil {
		return fmt.Errorf("sin slot para el proceso init")
	}

	k.initProc = p
	p.espacio = nuevoEspacio(k.config.EntradasTLB)
	p.tam = 0
	p.nombre = "init"
	p.esSistema = true
	p.cwd = nuevoInodo("/")
	p.programa = k.cuerpoInit(raiz)

	utils.InfoLog.Info(fmt.Sprintf("(%d) - Se crea el proceso init", p.pid))

	k.ptable.lock.Adquirir(c)
	p.estado = EstadoRunnable
	k.ptable.lock.Liberar(c)
	return nil
}

// cuerpoInit forkea la shell y se queda cosechando huérfanos para siempre
func (k *Kernel) cuerpoInit(raiz func(*Proc)) func(*Proc) {
	return func(p *Proc) {
		if raiz != nil {
			p.forkear(raiz, nombreShell, true)
		}
		for {
			if p.esperar(nil) < 0 {
				p.Sleep(1)
			}
		}
	}
}

// IniciarPlanificacion lanza el bucle de planificador de cada CPU
func (k *Kernel) IniciarPlanificacion() {
	utils.InfoLog.Info("Iniciando planificadores", "cpus", len(k.cpus))
	for _, c := range k.cpus {
		go k.planificador(c)
	}
}

// Detener hace que cada bucle de planificación termine al comenzar su
// siguiente vuelta
func (k *Kernel) Detener() {
	k.detenido.Store(true)
}

// IniciarMonitor levanta el servidor HTTP de monitoreo; con listener nil
// escucha en la dirección configurada
func (k *Kernel) IniciarMonitor(listener net.Listener) {
	k.servidorMonitor = utils.NewHTTPServer(k.config.IPKernel, k.config.PuertoMonitor, "Kernel")
	k.servidorMonitor.Listener = listener
	k.servidorMonitor.RegisterHTTPHandler(utils.MensajeHandshake, k.handlerHandshake)
	k.servidorMonitor.RegisterHTTPHandler(utils.MensajeOperacion, k.handlerOperacion)
	go func() {
		if err := k.servidorMonitor.Start(); err != nil {
			utils.ErrorLog.Error("Servidor de monitoreo caído", "error", err)
		}
	}()
}

// RegistrarComando guarda una línea de consola en el historial
func (k *Kernel) RegistrarComando(comando string) {
	k.consola.Registrar(comando)
}

// Ticks lee el reloj global
func (k *Kernel) Ticks() int {
	k.muExterna.Lock()
	defer k.muExterna.Unlock()
	k.tickslock.Adquirir(k.cpuExterna)
	ticks := k.ticks
	k.tickslock.Liberar(k.cpuExterna)
	return ticks
}

// MatarExterno aplica kill desde afuera del kernel (consola o monitor)
func (k *Kernel) MatarExterno(pid int) int {
	k.muExterna.Lock()
	defer k.muExterna.Unlock()
	return k.matar(k.cpuExterna, pid)
}

// PaginasSwapeadas cuenta, sin lock, las páginas actualmente expulsadas
func (k *Kernel) PaginasSwapeadas() int {
	total := 0
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.estado == EstadoUnused || p.espacio == nil {
			continue
		}
		for _, pte := range p.espacio.tabla {
			if pte&pteSwapeada != 0 && pte&ptePresente == 0 {
				total++
			}
		}
	}
	return total
}
