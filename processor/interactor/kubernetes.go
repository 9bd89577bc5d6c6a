package interactor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/browseterm/go-spawner/common"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	STATUS_DELETED_POD     = "deleted pod"
	STATUS_DELETED_SERVICE = "deleted service"
)

const managedByLabel = "go-spawner"

type KubernetesInteractor struct {
	clientset kubernetes.Interface

	readinessInterval time.Duration
	readinessTimeout  time.Duration
	retryCooldown     time.Duration
	retryAttempts     int
}

type KubernetesInteractorOptions struct {
	ReadinessInterval time.Duration
	ReadinessTimeout  time.Duration
	RetryCooldown     time.Duration
	RetryAttempts     int
}

func CreateKubernetesInteractor(options KubernetesInteractorOptions) (ContainerInteractor, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		config, err = clientcmd.BuildConfigFromFlags("", os.Getenv("KUBECONFIG"))
		if err != nil {
			return nil, err
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	interactor := KubernetesInteractor{
		clientset:         clientset,
		readinessInterval: options.ReadinessInterval,
		readinessTimeout:  options.ReadinessTimeout,
		retryCooldown:     options.RetryCooldown,
		retryAttempts:     options.RetryAttempts,
	}

	return &interactor, nil
}

// Supports reports stop as unsupported, kubernetes has no notion of a
// stopped-but-retained pod.
func (interactor *KubernetesInteractor) Supports(operation string) bool {
	switch operation {
	case OP_CREATE, OP_START, OP_DELETE, OP_INSPECT:
		return true
	}
	return false
}

// EnsureNetwork maps the uniform network name to a namespace.
func (interactor *KubernetesInteractor) EnsureNetwork(ctx context.Context, containerNetwork string) error {
	namespace := corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: containerNetwork},
	}

	err := interactor.withRetry(ctx, func() error {
		_, err := interactor.clientset.CoreV1().Namespaces().Create(ctx, &namespace, metav1.CreateOptions{})
		return err
	})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return interactor.mapError(err)
	}

	return nil
}

// CreateContainer creates one pod plus one service per published port.
// A pod is not addressable without a service, so the create fans out
// into one result per port.
func (interactor *KubernetesInteractor) CreateContainer(ctx context.Context, options CreateOptions) ([]CreateResult, error) {
	podSpec := interactor.buildPod(options)

	err := interactor.withRetry(ctx, func() error {
		_, err := interactor.clientset.CoreV1().Pods(options.Network).Create(ctx, podSpec, metav1.CreateOptions{})
		return err
	})
	if err != nil {
		return nil, interactor.mapError(err)
	}
	log.Printf("Created pod %v in namespace %v", options.Name, options.Network)

	results := []CreateResult{}
	for _, mapping := range options.Ports {
		serviceSpec := interactor.buildService(options, mapping)

		err := interactor.withRetry(ctx, func() error {
			_, err := interactor.clientset.CoreV1().Services(options.Network).Create(ctx, serviceSpec, metav1.CreateOptions{})
			return err
		})
		if err != nil {
			return nil, interactor.mapError(err)
		}
		log.Printf("Created service %v in namespace %v", serviceSpec.Name, options.Network)

		results = append(results, CreateResult{
			ID:      options.Name,
			Network: options.Network,
			Port:    mapping.External,
		})
	}

	if len(results) == 0 {
		results = append(results, CreateResult{ID: options.Name, Network: options.Network})
	}

	return results, nil
}

// StartContainer waits for the pod to become ready and resolves its
// address through the first service created for it. Pods schedule on
// creation, so there is no separate start call to issue.
func (interactor *KubernetesInteractor) StartContainer(ctx context.Context, id string, containerNetwork string) (AddressInfo, error) {
	result := AddressInfo{}

	var notFound error
	err := wait.PollUntilContextTimeout(ctx, interactor.readinessInterval, interactor.readinessTimeout, true, func(ctx context.Context) (bool, error) {
		pod, err := interactor.clientset.CoreV1().Pods(containerNetwork).Get(ctx, id, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			notFound = err
			return false, err
		} else if err != nil {
			// keep polling through transient API failures
			return false, nil
		}

		return podReady(pod), nil
	})
	if err != nil {
		if notFound != nil {
			return result, interactor.mapError(notFound)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: pod %v", ErrReadinessTimeout, id)
		}
		return result, err
	}

	address, err := interactor.resolveAddress(ctx, id, containerNetwork)
	if err != nil {
		return result, err
	}

	log.Printf("Pod %v is ready with address %v", id, address)

	result.ID = id
	result.IP = address
	return result, nil
}

func (interactor *KubernetesInteractor) StopContainer(ctx context.Context, id string) (StatusResult, error) {
	return StatusResult{}, ErrUnsupported
}

// DeleteContainer removes the pod and every service created alongside
// it, reporting one entry per removed object.
func (interactor *KubernetesInteractor) DeleteContainer(ctx context.Context, id string, containerNetwork string) ([]StatusResult, error) {
	err := interactor.withRetry(ctx, func() error {
		return interactor.clientset.CoreV1().Pods(containerNetwork).Delete(ctx, id, metav1.DeleteOptions{})
	})
	if err != nil {
		return nil, interactor.mapError(err)
	}
	log.Printf("Deleted pod %v", id)

	results := []StatusResult{{ID: id, Network: containerNetwork, Status: STATUS_DELETED_POD}}

	services, err := interactor.listServices(ctx, id, containerNetwork)
	if err != nil {
		return results, interactor.mapError(err)
	}

	for _, service := range services {
		err := interactor.withRetry(ctx, func() error {
			return interactor.clientset.CoreV1().Services(containerNetwork).Delete(ctx, service.Name, metav1.DeleteOptions{})
		})
		if err != nil && !apierrors.IsNotFound(err) {
			return results, interactor.mapError(err)
		}
		log.Printf("Deleted service %v", service.Name)

		results = append(results, StatusResult{ID: id, Network: containerNetwork, Status: STATUS_DELETED_SERVICE})
	}

	return results, nil
}

func (interactor *KubernetesInteractor) InspectContainer(ctx context.Context, id string, containerNetwork string) (common.ContainerRecord, error) {
	result := common.ContainerRecord{}

	pod, err := interactor.clientset.CoreV1().Pods(containerNetwork).Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		return result, interactor.mapError(err)
	}

	result.ContainerID = pod.Name
	result.ContainerNetwork = containerNetwork
	result.BackendKind = common.BACKEND_KUBERNETES
	result.State = podState(pod)

	services, err := interactor.listServices(ctx, id, containerNetwork)
	if err != nil {
		return result, interactor.mapError(err)
	}

	for _, service := range services {
		for _, port := range service.Spec.Ports {
			result.Ports = append(result.Ports, common.PortBinding{
				InternalPort: port.TargetPort.IntValue(),
				ExternalPort: int(port.Port),
			})
		}
	}

	sort.Slice(result.Ports, func(i, j int) bool {
		return result.Ports[i].InternalPort < result.Ports[j].InternalPort
	})

	return result, nil
}

func (interactor *KubernetesInteractor) buildPod(options CreateOptions) *corev1.Pod {
	env := []corev1.EnvVar{}
	for _, entry := range options.Env {
		name, value, _ := strings.Cut(entry, "=")
		env = append(env, corev1.EnvVar{Name: name, Value: value})
	}

	ports := []corev1.ContainerPort{}
	for _, mapping := range options.Ports {
		ports = append(ports, corev1.ContainerPort{
			ContainerPort: int32(mapping.Port.Int()),
			Protocol:      protocolOf(mapping.Port.Proto()),
		})
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      options.Name,
			Namespace: options.Network,
			Labels: map[string]string{
				"app":        options.Name,
				"managed-by": managedByLabel,
			},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:  options.Name,
				Image: options.Image,
				Env:   env,
				Ports: ports,
			}},
			RestartPolicy: corev1.RestartPolicyNever,
		},
	}
}

func (interactor *KubernetesInteractor) buildService(options CreateOptions, mapping PortMapping) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%v-%v", options.Name, mapping.Port.Int()),
			Namespace: options.Network,
			Labels: map[string]string{
				"app":        options.Name,
				"managed-by": managedByLabel,
			},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": options.Name},
			Ports: []corev1.ServicePort{{
				Protocol:   protocolOf(mapping.Port.Proto()),
				Port:       int32(mapping.External),
				TargetPort: intstr.FromInt(mapping.Port.Int()),
			}},
		},
	}
}

func (interactor *KubernetesInteractor) listServices(ctx context.Context, id string, containerNetwork string) ([]corev1.Service, error) {
	list, err := interactor.clientset.CoreV1().Services(containerNetwork).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + id,
	})
	if err != nil {
		return nil, err
	}

	services := list.Items
	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})

	return services, nil
}

func (interactor *KubernetesInteractor) resolveAddress(ctx context.Context, id string, containerNetwork string) (string, error) {
	services, err := interactor.listServices(ctx, id, containerNetwork)
	if err != nil {
		return "", interactor.mapError(err)
	}

	for _, service := range services {
		if service.Spec.ClusterIP != "" && service.Spec.ClusterIP != corev1.ClusterIPNone {
			return service.Spec.ClusterIP, nil
		}
	}

	// no services were published for this pod, fall back to the pod IP
	pod, err := interactor.clientset.CoreV1().Pods(containerNetwork).Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		return "", interactor.mapError(err)
	}

	if pod.Status.PodIP == "" {
		return "", fmt.Errorf("pod %v has no assigned address", id)
	}

	return pod.Status.PodIP, nil
}

func (interactor *KubernetesInteractor) withRetry(ctx context.Context, operation func() error) error {
	return retryTransient(ctx, interactor.retryCooldown, interactor.retryAttempts, isTransientAPIError, operation)
}

func (interactor *KubernetesInteractor) mapError(err error) error {
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case apierrors.IsAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrNameConflict, err)
	}
	return err
}

func isTransientAPIError(err error) bool {
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err)
}

func podReady(pod *corev1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func podState(pod *corev1.Pod) string {
	switch pod.Status.Phase {
	case corev1.PodRunning:
		return common.STATE_RUNNING
	case corev1.PodPending:
		return common.STATE_CREATED
	}
	return common.STATE_STOPPED
}

func protocolOf(proto string) corev1.Protocol {
	if strings.EqualFold(proto, "udp") {
		return corev1.ProtocolUDP
	}
	return corev1.ProtocolTCP
}
